// Package asr defines the speech recognition capability consumed by the
// pipeline and its backends.
package asr

import (
	"context"
	"time"
)

// SkipReason explains why a recognizer produced no text without failing.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipTooShort    SkipReason = "too_short"
	SkipTooQuiet    SkipReason = "too_quiet"
	SkipImplausible SkipReason = "implausible_length"
	SkipDenylisted  SkipReason = "denylisted"
)

// RecognitionResult is the output of one Transcribe call. Empty Text with a
// nil error means "no speech"; it is not a failure.
type RecognitionResult struct {
	Text     string
	Language string
	// AudioDuration is the length of the input audio.
	AudioDuration time.Duration
	// Skipped is set when the audio or the output was rejected before
	// reaching the caller.
	Skipped SkipReason
	// Model is the backend model that produced Text, when known.
	Model string
}

// Empty reports whether the result carries no usable text.
func (r *RecognitionResult) Empty() bool {
	return r == nil || r.Text == ""
}

// Recognizer transcribes one complete utterance. Audio is PCM16LE mono at the
// recognizer's configured input rate.
//
// Implementations must be safe for concurrent use: utterances from many
// sessions are transcribed in parallel.
type Recognizer interface {
	// Name returns the backend name (e.g. "openai-whisper").
	Name() string

	// Load prepares the backend. A failed Load leaves the service running in
	// degraded mode with Unavailable in its place.
	Load(ctx context.Context) error

	// Transcribe returns the utterance text. Infrastructure failures are
	// returned as *Error; quiet or short audio yields an empty result.
	Transcribe(ctx context.Context, audio []byte, sourceLang string) (*RecognitionResult, error)
}

// Error is a hard recognition failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidAudio
	ErrCodeUnsupportedLanguage
	ErrCodeAuthenticationFailed
	ErrCodeQuotaExceeded
	ErrCodeNetworkError
	ErrCodeProviderError
	ErrCodeUnavailable
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeInvalidConfig:
		return "invalid_config"
	case ErrCodeInvalidAudio:
		return "invalid_audio"
	case ErrCodeUnsupportedLanguage:
		return "unsupported_language"
	case ErrCodeAuthenticationFailed:
		return "authentication_failed"
	case ErrCodeQuotaExceeded:
		return "quota_exceeded"
	case ErrCodeNetworkError:
		return "network_error"
	case ErrCodeProviderError:
		return "provider_error"
	case ErrCodeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}
