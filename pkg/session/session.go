// Package session holds per-connection interpretation state.
package session

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/realtime-ai/interpreter/pkg/vad"
)

// Defaults applied to a new session and to session.create fields left
// empty.
const (
	DefaultSourceLang = "th"
	DefaultTargetLang = "en"
	DefaultVoice      = "adult_female"
	DefaultDenoise    = true
)

// Settings is the immutable snapshot of a session's configuration handed to
// pipeline runs.
type Settings struct {
	SessionID  string
	SourceLang string
	TargetLang string
	Voice      string
	Denoise    bool
}

// DefaultSettings returns the settings of a freshly opened session.
func DefaultSettings() Settings {
	return Settings{
		SourceLang: DefaultSourceLang,
		TargetLang: DefaultTargetLang,
		Voice:      DefaultVoice,
		Denoise:    DefaultDenoise,
	}
}

// Session is the state of one connection. Everything except NextSegmentID
// is owned by the connection's read loop and must not be touched from
// pipeline goroutines; those receive a Settings snapshot and a copy of the
// audio instead.
type Session struct {
	ID string

	settings  Settings
	recording bool
	buffer    []byte
	segmenter *vad.Segmenter

	segments atomic.Uint64
}

// New creates a session with default settings. seg may be nil when the
// session only serves push-to-talk.
func New(seg *vad.Segmenter) *Session {
	id := uuid.New().String()
	settings := DefaultSettings()
	settings.SessionID = id
	return &Session{
		ID:        id,
		settings:  settings,
		segmenter: seg,
	}
}

// Settings returns a copy of the current configuration.
func (s *Session) Settings() Settings {
	return s.settings
}

// Configure applies a session.create request. Empty strings keep the
// defaults. The segmenter is reset so no utterance spans two
// configurations.
func (s *Session) Configure(sourceLang, targetLang, voice string, denoise bool) error {
	s.settings = Settings{
		SessionID:  s.ID,
		SourceLang: orDefault(sourceLang, DefaultSourceLang),
		TargetLang: orDefault(targetLang, DefaultTargetLang),
		Voice:      orDefault(voice, DefaultVoice),
		Denoise:    denoise,
	}
	s.recording = false
	s.buffer = s.buffer[:0]
	return s.resetSegmenter()
}

// Recording reports whether the session is in push-to-talk capture.
func (s *Session) Recording() bool {
	return s.recording
}

// StartRecording enters push-to-talk mode and clears the buffer.
func (s *Session) StartRecording() {
	s.recording = true
	s.buffer = s.buffer[:0]
}

// StopRecording leaves push-to-talk mode and returns the captured audio.
func (s *Session) StopRecording() []byte {
	s.recording = false
	return s.Drain()
}

// Append adds inbound PCM to the buffer.
func (s *Session) Append(pcm []byte) {
	s.buffer = append(s.buffer, pcm...)
}

// Buffered returns the number of bytes waiting in the buffer.
func (s *Session) Buffered() int {
	return len(s.buffer)
}

// Drain returns a copy of the buffer and empties it. It returns nil when the
// buffer is empty.
func (s *Session) Drain() []byte {
	if len(s.buffer) == 0 {
		return nil
	}
	out := make([]byte, len(s.buffer))
	copy(out, s.buffer)
	s.buffer = s.buffer[:0]
	return out
}

// Segmenter returns the session's segmenter, or nil.
func (s *Session) Segmenter() *vad.Segmenter {
	return s.segmenter
}

// NextSegmentID returns seg_0001, seg_0002, ... It is safe to call from the
// delivery goroutine.
func (s *Session) NextSegmentID() string {
	return fmt.Sprintf("seg_%04d", s.segments.Add(1))
}

// Close releases the segmenter's classifier.
func (s *Session) Close() error {
	if s.segmenter == nil {
		return nil
	}
	return s.segmenter.Close()
}

func (s *Session) resetSegmenter() error {
	if s.segmenter == nil {
		return nil
	}
	if err := s.segmenter.Reset(); err != nil {
		return fmt.Errorf("reset segmenter: %w", err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
