package asr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/interpreter/pkg/audio"
)

type stubRecognizer struct {
	text  string
	err   error
	calls int
}

func (s *stubRecognizer) Name() string                   { return "stub" }
func (s *stubRecognizer) Load(ctx context.Context) error { return nil }
func (s *stubRecognizer) Transcribe(ctx context.Context, pcm []byte, lang string) (*RecognitionResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &RecognitionResult{Text: s.text, Language: lang}, nil
}

// tone returns ms milliseconds of a constant PCM16 level at 16 kHz.
func tone(ms int, level int16) []byte {
	samples := make([]int16, 16*ms)
	for i := range samples {
		samples[i] = level
	}
	return audio.Int16ToBytes(samples)
}

func TestGate(t *testing.T) {
	loud := tone(1000, 8000)

	tests := []struct {
		name      string
		pcm       []byte
		text      string
		wantText  string
		wantSkip  SkipReason
		wantCalls int
	}{
		{"too short", tone(200, 8000), "hello", "", SkipTooShort, 0},
		{"too quiet", tone(1000, 100), "hello", "", SkipTooQuiet, 0},
		{"passes", loud, "  hello  ", "hello", SkipNone, 1},
		{"implausibly long", loud, strings.Repeat("a", 81), "", SkipImplausible, 1},
		{"denylisted", loud, "Thanks for watching!", "", SkipDenylisted, 1},
		{"repetition truncated", loud, "go go go go go", "go", SkipNone, 1},
		{"empty stays empty", loud, "", "", SkipNone, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRecognizer{text: tt.text}
			gate := NewGate(stub, DefaultGateConfig(), nil)

			res, err := gate.Transcribe(context.Background(), tt.pcm, "en")
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, tt.wantSkip, res.Skipped)
			assert.Equal(t, tt.wantCalls, stub.calls)
		})
	}
}

func TestGate_HardErrorPropagates(t *testing.T) {
	backendErr := &Error{Code: ErrCodeNetworkError, Message: "down"}
	gate := NewGate(&stubRecognizer{err: backendErr}, DefaultGateConfig(), nil)

	_, err := gate.Transcribe(context.Background(), tone(1000, 8000), "th")
	require.Error(t, err)

	var asrErr *Error
	require.True(t, errors.As(err, &asrErr))
	assert.Equal(t, ErrCodeNetworkError, asrErr.Code)
}

func TestUnavailable(t *testing.T) {
	u := &Unavailable{Backend: "openai-whisper", Cause: errors.New("no key")}
	assert.Equal(t, "openai-whisper (unavailable)", u.Name())

	_, err := u.Transcribe(context.Background(), tone(1000, 8000), "th")
	var asrErr *Error
	require.True(t, errors.As(err, &asrErr))
	assert.Equal(t, ErrCodeUnavailable, asrErr.Code)
	assert.Contains(t, err.Error(), "no key")
}

func TestNormalizePhrase(t *testing.T) {
	assert.Equal(t, "thank you for watching", normalizePhrase(" Thank you for watching. "))
	assert.Equal(t, "subtitles by the amara.org community", normalizePhrase("Subtitles by the Amara.org community"))
}
