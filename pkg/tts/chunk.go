package tts

import (
	"context"
	"fmt"

	"github.com/realtime-ai/interpreter/pkg/tokenizer"
)

// DefaultChunkChars keeps requests well under provider text limits.
const DefaultChunkChars = 500

type chunked struct {
	next   Synthesizer
	maxLen int
}

// WithChunking synthesizes text longer than maxLen runes one sentence group
// at a time and concatenates the PCM. maxLen <= 0 returns s unchanged.
func WithChunking(s Synthesizer, maxLen int) Synthesizer {
	if maxLen <= 0 {
		return s
	}
	return &chunked{next: s, maxLen: maxLen}
}

func (c *chunked) Name() string { return c.next.Name() }

func (c *chunked) Load(ctx context.Context) error { return c.next.Load(ctx) }

func (c *chunked) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	chunks := tokenizer.Chunk(text, c.maxLen)
	if len(chunks) <= 1 {
		return c.next.Synthesize(ctx, text, voice, lang)
	}

	var out []byte
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pcm, err := c.next.Synthesize(ctx, chunk, voice, lang)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out = append(out, pcm...)
	}
	return out, nil
}
