package asr

import (
	"context"
)

// Unavailable stands in for a recognizer that failed to load. Every call is a
// hard failure, so each utterance surfaces as a pipeline error rather than
// silently producing nothing.
type Unavailable struct {
	Backend string
	Cause   error
}

func (u *Unavailable) Name() string { return u.Backend + " (unavailable)" }

func (u *Unavailable) Load(ctx context.Context) error { return nil }

func (u *Unavailable) Transcribe(ctx context.Context, audio []byte, sourceLang string) (*RecognitionResult, error) {
	return nil, &Error{
		Code:    ErrCodeUnavailable,
		Message: "speech recognition is unavailable",
		Err:     u.Cause,
	}
}

var _ Recognizer = (*Unavailable)(nil)
