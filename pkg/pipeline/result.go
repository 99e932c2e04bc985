// Package pipeline runs one utterance through denoise, recognition,
// transcript filtering, translation and synthesis.
package pipeline

import "time"

// Mode names the ingest path that produced an utterance.
type Mode string

const (
	ModeRealtime   Mode = "realtime"
	ModePushToTalk Mode = "push_to_talk"
)

// Stage names, used for spans, metrics and logs.
const (
	StageDenoise    = "denoise"
	StageRecognize  = "recognize"
	StageFilter     = "filter"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
)

// Timings holds per-stage durations. Stages that did not run are zero.
type Timings struct {
	Denoise    time.Duration
	Recognize  time.Duration
	Filter     time.Duration
	Translate  time.Duration
	Synthesize time.Duration
}

// Result is what one unit of work reports back to the client. Empty strings
// and nil slices mean the stage had nothing to report.
type Result struct {
	SpeechStart bool
	SpeechEnd   bool

	Transcript  string
	Translation string
	// Audio is PCM16LE mono at the synthesizer's output rate.
	Audio []byte

	Timings Timings
	Elapsed time.Duration
}

// Empty reports whether r carries nothing to send.
func (r *Result) Empty() bool {
	return r == nil || (!r.SpeechStart && !r.SpeechEnd && r.Transcript == "" && r.Translation == "" && len(r.Audio) == 0)
}
