package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/asr"
	"github.com/realtime-ai/interpreter/pkg/audio"
	"github.com/realtime-ai/interpreter/pkg/metrics"
	"github.com/realtime-ai/interpreter/pkg/session"
	"github.com/realtime-ai/interpreter/pkg/textfilter"
	"github.com/realtime-ai/interpreter/pkg/trace"
	"github.com/realtime-ai/interpreter/pkg/translate"
	"github.com/realtime-ai/interpreter/pkg/tts"
	"github.com/realtime-ai/interpreter/pkg/vad"
)

// ErrNoRecognizer is returned by NewOrchestrator when Capabilities has no
// Recognizer.
var ErrNoRecognizer = errors.New("pipeline: recognizer is required")

// Capabilities are the stage backends an Orchestrator runs. Denoiser and
// Filter are optional. A nil Translator passes text through and a nil
// Synthesizer produces placeholder silence.
type Capabilities struct {
	Denoiser    Denoiser
	Recognizer  asr.Recognizer
	Filter      textfilter.Filter
	Translator  translate.Translator
	Synthesizer tts.Synthesizer
}

// Description names the backend behind each capability.
type Description struct {
	Denoiser    string `json:"denoiser,omitempty"`
	Recognizer  string `json:"recognizer"`
	Filter      string `json:"filter,omitempty"`
	Translator  string `json:"translator"`
	Synthesizer string `json:"synthesizer"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics records stage durations and failures into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRealtimeFilter enables the transcript filter for realtime utterances.
// Push-to-talk utterances are always filtered when a Filter is configured.
func WithRealtimeFilter(enabled bool) Option {
	return func(o *Orchestrator) { o.realtimeFilter = enabled }
}

// WithInputSampleRate sets the rate of inbound audio handed to the denoiser.
func WithInputSampleRate(rate int) Option {
	return func(o *Orchestrator) { o.inputRate = rate }
}

// Orchestrator holds no per-session state: every call receives the audio
// and a settings snapshot, so one instance serves all connections
// concurrently.
type Orchestrator struct {
	caps           Capabilities
	logger         *zap.Logger
	metrics        *metrics.Metrics
	realtimeFilter bool
	inputRate      int
}

// NewOrchestrator builds an orchestrator. Translator, Synthesizer and Filter
// are wrapped in their degrade guards, so a failing backend costs quality
// rather than the utterance.
func NewOrchestrator(caps Capabilities, opts ...Option) (*Orchestrator, error) {
	if caps.Recognizer == nil {
		return nil, ErrNoRecognizer
	}

	o := &Orchestrator{
		logger:    zap.NewNop(),
		inputRate: audio.InputSampleRate,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("pipeline")

	if caps.Translator == nil {
		caps.Translator = translate.Passthrough{}
	}
	if caps.Synthesizer == nil {
		caps.Synthesizer = &tts.SilenceSynthesizer{}
	}
	caps.Translator = translate.Guard(caps.Translator, o.logger)
	caps.Synthesizer = tts.WithSilenceFallback(caps.Synthesizer, audio.OutputSampleRate, o.logger)
	if caps.Filter != nil {
		caps.Filter = textfilter.Guard(caps.Filter, o.logger)
	}
	o.caps = caps

	return o, nil
}

// Describe names the configured backends.
func (o *Orchestrator) Describe() Description {
	d := Description{
		Recognizer:  o.caps.Recognizer.Name(),
		Translator:  o.caps.Translator.Name(),
		Synthesizer: o.caps.Synthesizer.Name(),
	}
	if o.caps.Denoiser != nil {
		d.Denoiser = o.caps.Denoiser.Name()
	}
	if o.caps.Filter != nil {
		d.Filter = o.caps.Filter.Name()
	}
	return d
}

// ProcessSegment runs a complete push-to-talk utterance. A nil error with
// an empty Transcript means no speech was recognized.
func (o *Orchestrator) ProcessSegment(ctx context.Context, pcm []byte, settings session.Settings) (*Result, error) {
	return o.run(ctx, ModePushToTalk, pcm, settings, true)
}

// ProcessRealtime segments frame with the session's segmenter and runs
// every resulting unit in order. It returns one result per boundary event;
// an empty slice means the frame produced no event.
//
// The server splits this into Segment on the read loop and Unit.Run on the
// worker pool so utterances overlap while segmentation stays ordered.
func (o *Orchestrator) ProcessRealtime(ctx context.Context, frame []byte, sess *session.Session) ([]*Result, error) {
	units := o.Segment(frame, sess)
	results := make([]*Result, 0, len(units))
	for _, u := range units {
		res, err := u.Run(ctx, o)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Unit is the work for one boundary event. A speech_start unit carries no
// audio; a speech_end unit carries the whole utterance.
type Unit struct {
	Event    vad.EventType
	Audio    []byte
	Settings session.Settings
}

// Segment feeds frame to the session's segmenter and returns a unit per
// event. It must be called from the goroutine that owns sess.
func (o *Orchestrator) Segment(frame []byte, sess *session.Session) []Unit {
	seg := sess.Segmenter()
	if seg == nil {
		return nil
	}

	out := seg.Process(frame)
	if out.ClassifierErrors > 0 {
		o.metrics.ClassifierFailed(out.ClassifierErrors)
		o.logger.Warn("speech classifier failed on some windows",
			zap.String("session_id", sess.ID), zap.Int("windows", out.ClassifierErrors))
	}
	if len(out.Events) == 0 {
		return nil
	}

	return unitsFor(out, sess.Settings())
}

// Flush closes the session's open utterance, if any, and returns its
// speech_end unit. It must be called from the goroutine that owns sess.
func (o *Orchestrator) Flush(sess *session.Session) []Unit {
	seg := sess.Segmenter()
	if seg == nil {
		return nil
	}
	out := seg.Flush()
	if len(out.Events) == 0 {
		return nil
	}
	return unitsFor(out, sess.Settings())
}

func unitsFor(out vad.Output, settings session.Settings) []Unit {
	units := make([]Unit, len(out.Events))
	for i, ev := range out.Events {
		units[i] = Unit{Event: ev.Type, Audio: ev.Audio, Settings: settings}
	}
	return units
}

// Run executes the unit. It is safe to call concurrently with other units
// and with Segment.
func (u Unit) Run(ctx context.Context, o *Orchestrator) (*Result, error) {
	switch u.Event {
	case vad.EventSpeechStart:
		return &Result{SpeechStart: true}, nil
	case vad.EventSpeechEnd:
		if len(u.Audio) == 0 {
			return &Result{SpeechEnd: true}, nil
		}
		res, err := o.run(ctx, ModeRealtime, u.Audio, u.Settings, o.realtimeFilter)
		if err != nil {
			// the boundary still reaches the client ahead of the error
			return &Result{SpeechEnd: true}, err
		}
		res.SpeechEnd = true
		return res, nil
	default:
		return nil, fmt.Errorf("pipeline: unknown event %q", u.Event)
	}
}

func (o *Orchestrator) run(ctx context.Context, mode Mode, pcm []byte, settings session.Settings, filter bool) (*Result, error) {
	start := time.Now()
	o.metrics.UtteranceDispatched(string(mode))

	ctx, span := trace.InstrumentUtterance(ctx, string(mode), len(pcm))
	defer span.End()
	trace.SetAttributes(span, trace.SessionAttrs(settings.SessionID, settings.SourceLang, settings.TargetLang, settings.Voice)...)

	logger := o.logger.With(zap.String("session_id", settings.SessionID), zap.String("mode", string(mode)))
	res := &Result{}

	if settings.Denoise && o.caps.Denoiser != nil {
		var denoised []byte
		err := o.stage(ctx, StageDenoise, o.caps.Denoiser.Name(), &res.Timings.Denoise, func(ctx context.Context) error {
			var err error
			denoised, err = o.caps.Denoiser.Denoise(ctx, pcm, o.inputRate)
			return err
		})
		switch {
		case err != nil:
			logger.Warn("denoise failed, using raw audio", zap.Error(err))
		case len(denoised) > 0:
			pcm = denoised
		}
	}

	var rec *asr.RecognitionResult
	err := o.stage(ctx, StageRecognize, o.caps.Recognizer.Name(), &res.Timings.Recognize, func(ctx context.Context) error {
		var err error
		rec, err = o.caps.Recognizer.Transcribe(ctx, pcm, settings.SourceLang)
		return err
	})
	if err != nil {
		o.metrics.StageFailed(StageRecognize)
		trace.RecordError(span, err)
		return nil, fmt.Errorf("recognize: %w", err)
	}

	transcript := ""
	if !rec.Empty() {
		transcript = strings.TrimSpace(rec.Text)
	}

	if transcript != "" && filter && o.caps.Filter != nil {
		var filtered string
		err := o.stage(ctx, StageFilter, o.caps.Filter.Name(), &res.Timings.Filter, func(ctx context.Context) error {
			var err error
			filtered, err = o.caps.Filter.Process(ctx, transcript)
			return err
		})
		if err == nil {
			transcript = strings.TrimSpace(filtered)
		}
	}

	if transcript == "" {
		res.Elapsed = time.Since(start)
		o.metrics.EmptyTranscript()
		logger.Debug("no speech recognized",
			zap.Duration("audio", audio.Duration(pcm, o.inputRate)),
			zap.Duration("recognize", res.Timings.Recognize))
		return res, nil
	}
	res.Transcript = transcript

	err = o.stage(ctx, StageTranslate, o.caps.Translator.Name(), &res.Timings.Translate, func(ctx context.Context) error {
		var err error
		res.Translation, err = o.caps.Translator.Translate(ctx, transcript, settings.SourceLang, settings.TargetLang)
		return err
	})
	if err != nil {
		o.metrics.StageFailed(StageTranslate)
		trace.RecordError(span, err)
		return nil, fmt.Errorf("translate: %w", err)
	}

	if res.Translation != "" {
		err = o.stage(ctx, StageSynthesize, o.caps.Synthesizer.Name(), &res.Timings.Synthesize, func(ctx context.Context) error {
			var err error
			res.Audio, err = o.caps.Synthesizer.Synthesize(ctx, res.Translation, settings.Voice, settings.TargetLang)
			return err
		})
		if err != nil {
			o.metrics.StageFailed(StageSynthesize)
			trace.RecordError(span, err)
			return nil, fmt.Errorf("synthesize: %w", err)
		}
	}

	res.Elapsed = time.Since(start)
	o.metrics.ObservePipeline(string(mode), res.Elapsed)

	logger.Info("utterance processed",
		zap.Duration("audio", audio.Duration(pcm, o.inputRate)),
		zap.Duration("denoise", res.Timings.Denoise),
		zap.Duration("recognize", res.Timings.Recognize),
		zap.Duration("filter", res.Timings.Filter),
		zap.Duration("translate", res.Timings.Translate),
		zap.Duration("synthesize", res.Timings.Synthesize),
		zap.Duration("total", res.Elapsed),
		zap.String("transcript", truncate(res.Transcript, 60)),
		zap.String("translation", truncate(res.Translation, 60)))

	return res, nil
}

// stage times fn into *elapsed inside its own span.
func (o *Orchestrator) stage(ctx context.Context, name, provider string, elapsed *time.Duration, fn func(context.Context) error) error {
	ctx, span := trace.InstrumentStage(ctx, name, provider)
	defer span.End()

	t0 := time.Now()
	err := fn(ctx)
	*elapsed = time.Since(t0)
	o.metrics.ObserveStage(name, *elapsed)

	if err != nil {
		trace.RecordError(span, err)
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
