// Package tts defines the speech synthesis capability, its HTTP backends and
// the static voice catalog.
package tts

import (
	"context"
)

// Synthesizer converts translated text to speech.
//
// Implementations return PCM16LE mono at audio.OutputSampleRate and must be
// safe for concurrent use.
type Synthesizer interface {
	// Name returns the backend name (e.g. "openai", "azure").
	Name() string

	// Load checks that the backend is usable.
	Load(ctx context.Context) error

	// Synthesize speaks text. voice is a voice type from the catalog
	// ("adult_female", ...) and lang the target language code.
	Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error)
}
