package tts

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/audio"
)

// SilencePerWord is the placeholder duration per word, in seconds.
const SilencePerWord = 0.1

// SilenceFor returns sampleRate × words × 0.1 samples of silence for text,
// counting at least one word.
func SilenceFor(text string, sampleRate int) []byte {
	words := max(1, len(strings.Fields(text)))
	return audio.Silence(int(float64(sampleRate) * float64(words) * SilencePerWord))
}

// SilenceSynthesizer is the degraded-mode synthesizer used when no backend
// could be loaded.
type SilenceSynthesizer struct {
	SampleRate int
}

func (s *SilenceSynthesizer) Name() string { return "silence" }

func (s *SilenceSynthesizer) Load(ctx context.Context) error { return nil }

func (s *SilenceSynthesizer) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return SilenceFor(text, s.rate()), nil
}

func (s *SilenceSynthesizer) rate() int {
	if s.SampleRate > 0 {
		return s.SampleRate
	}
	return audio.OutputSampleRate
}

type silenceFallback struct {
	next       Synthesizer
	sampleRate int
	logger     *zap.Logger
}

// WithSilenceFallback wraps s so that a failed or empty synthesis of
// non-empty text yields placeholder silence instead of an error. Playback
// on the client stays aligned with the transcript either way.
func WithSilenceFallback(s Synthesizer, sampleRate int, logger *zap.Logger) Synthesizer {
	if sampleRate <= 0 {
		sampleRate = audio.OutputSampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &silenceFallback{next: s, sampleRate: sampleRate, logger: logger.Named("tts")}
}

func (f *silenceFallback) Name() string { return f.next.Name() }

func (f *silenceFallback) Load(ctx context.Context) error { return f.next.Load(ctx) }

func (f *silenceFallback) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	pcm, err := f.next.Synthesize(ctx, text, voice, lang)
	switch {
	case err != nil:
		f.logger.Warn("synthesis failed, using silence",
			zap.String("provider", f.next.Name()), zap.String("voice", voice), zap.Error(err))
	case len(pcm) == 0:
		f.logger.Warn("synthesis returned no audio, using silence", zap.String("provider", f.next.Name()))
	default:
		return pcm, nil
	}
	return SilenceFor(text, f.sampleRate), nil
}
