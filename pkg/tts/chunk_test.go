package tts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSynthesizer struct {
	texts  []string
	failOn int
}

func (s *recordingSynthesizer) Name() string                   { return "recording" }
func (s *recordingSynthesizer) Load(ctx context.Context) error { return nil }

func (s *recordingSynthesizer) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	s.texts = append(s.texts, text)
	if s.failOn > 0 && len(s.texts) == s.failOn {
		return nil, errors.New("quota")
	}
	return []byte{byte(len(s.texts)), 0}, nil
}

func TestWithChunking(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		rec := &recordingSynthesizer{}
		assert.Same(t, Synthesizer(rec), WithChunking(rec, 0))
	})

	t.Run("short text is one request", func(t *testing.T) {
		rec := &recordingSynthesizer{}
		pcm, err := WithChunking(rec, 100).Synthesize(ctx, "Hello there.", VoiceAdultFemale, "en")
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 0}, pcm)
		assert.Equal(t, []string{"Hello there."}, rec.texts)
	})

	t.Run("long text is concatenated in order", func(t *testing.T) {
		rec := &recordingSynthesizer{}
		s := WithChunking(rec, 20)
		assert.Equal(t, "recording", s.Name())

		pcm, err := s.Synthesize(ctx, "First sentence here. Second one here. Third.", VoiceAdultFemale, "en")
		require.NoError(t, err)
		assert.Equal(t, []string{"First sentence here.", "Second one here.", "Third."}, rec.texts)
		assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, pcm)
	})

	t.Run("chunk failure fails the whole text", func(t *testing.T) {
		rec := &recordingSynthesizer{failOn: 2}
		_, err := WithChunking(rec, 10).Synthesize(ctx, strings.Repeat("word ", 10), VoiceAdultFemale, "en")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chunk 2/")
		assert.Len(t, rec.texts, 2)
	})

	t.Run("cancelled context stops early", func(t *testing.T) {
		rec := &recordingSynthesizer{}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := WithChunking(rec, 10).Synthesize(cctx, strings.Repeat("word ", 10), VoiceAdultFemale, "en")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, rec.texts)
	})
}
