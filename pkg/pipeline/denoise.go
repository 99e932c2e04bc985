package pipeline

import (
	"context"
	"errors"

	"github.com/realtime-ai/interpreter/pkg/audio"
)

// Denoiser suppresses background noise in PCM16LE mono audio. Output must
// have the same length and sample rate as the input.
type Denoiser interface {
	Name() string
	Denoise(ctx context.Context, pcm []byte, sampleRate int) ([]byte, error)
}

// NoiseGate is a frame-wise gate: 20 ms frames whose RMS falls below
// Threshold are zeroed, everything else is untouched.
type NoiseGate struct {
	Threshold float64
}

// NewNoiseGate returns a gate tuned to the recognizer's quiet-audio limit.
func NewNoiseGate() *NoiseGate {
	return &NoiseGate{Threshold: 0.008}
}

func (g *NoiseGate) Name() string { return "noise-gate" }

func (g *NoiseGate) Denoise(ctx context.Context, pcm []byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, errors.New("noise gate: invalid sample rate")
	}
	frame := audio.BytesForDuration(sampleRate, 20)
	out := make([]byte, len(pcm))
	copy(out, pcm)

	for off := 0; off+frame <= len(out); off += frame {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if audio.PCMRMS(out[off:off+frame]) < g.Threshold {
			clear(out[off : off+frame])
		}
	}
	return out, nil
}
