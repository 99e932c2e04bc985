// Package vad turns a continuous PCM stream into utterances. A per-window
// speech classifier (DetectorInterface) feeds a two-state machine with
// hysteresis; the Segmenter owns only that decision logic.
package vad

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/audio"
)

// State is the segmentation state.
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType identifies an utterance boundary.
type EventType string

const (
	EventSpeechStart EventType = "speech_start"
	EventSpeechEnd   EventType = "speech_end"
)

// Event is one boundary produced by Process. Audio is set only on
// EventSpeechEnd and holds the complete utterance as PCM16LE. The slice is
// owned by the receiver.
type Event struct {
	Type  EventType
	Audio []byte
}

// Output is the result of one Process call.
type Output struct {
	Events []Event
	// HasSpeech is true when any window classified in this call was speech.
	HasSpeech bool
	// ClassifierErrors counts windows whose classification failed; those
	// windows were treated as non-speech.
	ClassifierErrors int
}

// SegmenterConfig configures a Segmenter.
type SegmenterConfig struct {
	SampleRate int `yaml:"sample_rate"`
	// WindowSize is the number of samples per classification and must match
	// the classifier's input length.
	WindowSize int `yaml:"window_size"`
	// Threshold is the speech probability above which a window is speech.
	Threshold float32 `yaml:"threshold"`
	// SilenceWindows is the number of consecutive non-speech windows that
	// end an utterance.
	SilenceWindows int `yaml:"silence_windows"`
	// PreRollMs of audio preceding speech_start is prepended to the
	// utterance. Zero disables pre-roll.
	PreRollMs int `yaml:"pre_roll_ms"`
}

// DefaultSegmenterConfig is 512-sample windows at 16 kHz with a 16 window
// (~512 ms) hysteresis.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SampleRate:     audio.InputSampleRate,
		WindowSize:     512,
		Threshold:      0.5,
		SilenceWindows: 16,
	}
}

// Validate checks the configuration.
func (c SegmenterConfig) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("window_size must be positive, got %d", c.WindowSize))
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold must be within [0, 1], got %v", c.Threshold))
	}
	if c.SilenceWindows <= 0 {
		errs = append(errs, fmt.Errorf("silence_windows must be positive, got %d", c.SilenceWindows))
	}
	if c.PreRollMs < 0 {
		errs = append(errs, fmt.Errorf("pre_roll_ms must not be negative, got %d", c.PreRollMs))
	}
	return errors.Join(errs...)
}

// SegmenterOption configures optional Segmenter behaviour.
type SegmenterOption func(*Segmenter)

// WithLogger sets the logger used for classifier failures.
func WithLogger(logger *zap.Logger) SegmenterOption {
	return func(s *Segmenter) {
		s.logger = logger.Named("segmenter")
	}
}

// Segmenter is the per-session utterance state machine. It is not safe for
// concurrent use; callers feed it from a single goroutine in arrival order.
type Segmenter struct {
	cfg    SegmenterConfig
	det    DetectorInterface
	logger *zap.Logger

	state      State
	remainder  []byte
	utterance  []byte
	silenceRun int
	preRoll    *audio.RingBuffer
}

// NewSegmenter creates a Segmenter in the idle state.
func NewSegmenter(cfg SegmenterConfig, det DetectorInterface, opts ...SegmenterOption) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmenter config: %w", err)
	}
	if det == nil {
		return nil, errors.New("segmenter requires a detector")
	}

	s := &Segmenter{
		cfg:    cfg,
		det:    det,
		logger: zap.NewNop(),
	}
	if cfg.PreRollMs > 0 {
		s.preRoll = audio.NewRingBuffer(cfg.SampleRate, cfg.PreRollMs)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process appends pcm (PCM16LE) to the stream and classifies every complete
// window in arrival order. Samples that do not fill a window are kept for the
// next call; they are never padded or dropped.
func (s *Segmenter) Process(pcm []byte) Output {
	var out Output

	s.remainder = append(s.remainder, pcm...)
	windowBytes := s.cfg.WindowSize * audio.BytesPerSample

	off := 0
	for len(s.remainder)-off >= windowBytes {
		window := s.remainder[off : off+windowBytes]
		off += windowBytes

		speech := s.classify(window, &out)
		if speech {
			out.HasSpeech = true
		}
		s.step(window, speech, &out)
	}

	n := copy(s.remainder, s.remainder[off:])
	s.remainder = s.remainder[:n]

	return out
}

func (s *Segmenter) classify(window []byte, out *Output) bool {
	prob, err := s.det.Infer(audio.ToFloat32(window))
	if err != nil {
		out.ClassifierErrors++
		s.logger.Warn("window classification failed", zap.Error(err))
		return false
	}
	return prob > s.cfg.Threshold
}

func (s *Segmenter) step(window []byte, speech bool, out *Output) {
	switch s.state {
	case StateIdle:
		if !speech {
			if s.preRoll != nil {
				s.preRoll.Write(window)
			}
			return
		}
		s.state = StateActive
		s.utterance = nil
		if s.preRoll != nil {
			s.utterance = s.preRoll.Bytes()
			s.preRoll.Reset()
		}
		s.utterance = append(s.utterance, window...)
		s.silenceRun = 0
		out.Events = append(out.Events, Event{Type: EventSpeechStart})

	case StateActive:
		s.utterance = append(s.utterance, window...)
		if speech {
			s.silenceRun = 0
			return
		}
		s.silenceRun++
		if s.silenceRun >= s.cfg.SilenceWindows {
			out.Events = append(out.Events, Event{Type: EventSpeechEnd, Audio: s.utterance})
			s.utterance = nil
			s.silenceRun = 0
			s.state = StateIdle
		}
	}
}

// Flush ends an open utterance early. When the segmenter is active, the
// captured audio plus any unclassified remainder is returned as a
// speech_end event and the segmenter goes idle. An idle segmenter returns an
// empty Output and keeps its remainder.
func (s *Segmenter) Flush() Output {
	var out Output
	if s.state != StateActive {
		return out
	}

	utterance := append(s.utterance, s.remainder...)
	out.Events = append(out.Events, Event{Type: EventSpeechEnd, Audio: utterance})
	s.utterance = nil
	s.remainder = s.remainder[:0]
	s.silenceRun = 0
	s.state = StateIdle
	return out
}

// Reset forces the idle state, drops buffered audio and clears the
// classifier's recurrent state. Only call it when (re)initializing a session:
// resetting mid-utterance discards that utterance.
func (s *Segmenter) Reset() error {
	s.state = StateIdle
	s.remainder = s.remainder[:0]
	s.utterance = nil
	s.silenceRun = 0
	if s.preRoll != nil {
		s.preRoll.Reset()
	}
	if err := s.det.Reset(); err != nil {
		return fmt.Errorf("reset detector: %w", err)
	}
	return nil
}

// Close releases the classifier.
func (s *Segmenter) Close() error {
	return s.det.Destroy()
}

// State returns the current segmentation state.
func (s *Segmenter) State() State { return s.state }

// Buffered returns the number of bytes held but not yet classified.
func (s *Segmenter) Buffered() int { return len(s.remainder) }

// Config returns the segmenter configuration.
func (s *Segmenter) Config() SegmenterConfig { return s.cfg }
