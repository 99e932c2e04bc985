// Package translate defines the text translation capability and its
// backends.
package translate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/textfilter"
)

// Translator converts text between languages.
type Translator interface {
	Name() string
	Load(ctx context.Context) error
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

var languageNames = map[string]string{
	"th": "Thai",
	"en": "English",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"vi": "Vietnamese",
	"id": "Indonesian",
}

// languageName returns the English name of a language code, or the code
// itself when unknown.
func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

func buildPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf("You are a professional interpreter. Translate the user's %s speech transcript into %s. "+
		"Reply with the translation only. Do not explain, do not add notes, and keep the speaker's register.",
		languageName(sourceLang), languageName(targetLang))
}

type guard struct {
	next   Translator
	logger *zap.Logger
}

// Guard wraps t with the degrade rules every translator follows: empty
// input yields empty output, identical languages return the input, a
// backend error or empty reply returns the input, and looping output is
// truncated.
func Guard(t Translator, logger *zap.Logger) Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &guard{next: t, logger: logger.Named("translate")}
}

func (g *guard) Name() string { return g.next.Name() }

func (g *guard) Load(ctx context.Context) error { return g.next.Load(ctx) }

func (g *guard) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if strings.EqualFold(sourceLang, targetLang) {
		return text, nil
	}

	out, err := g.next.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		g.logger.Warn("translation failed, passing source text through",
			zap.String("translator", g.next.Name()),
			zap.String("source", sourceLang),
			zap.String("target", targetLang),
			zap.Error(err))
		return text, nil
	}

	out = strings.TrimSpace(out)
	if out == "" {
		g.logger.Warn("translator returned nothing, passing source text through", zap.String("translator", g.next.Name()))
		return text, nil
	}
	if truncated, changed := textfilter.TranslationRepetition.Truncate(out); changed {
		g.logger.Warn("repetition in translation, truncating", zap.String("before", out), zap.String("after", truncated))
		out = truncated
	}
	return out, nil
}

// Passthrough returns its input. It stands in when no backend can load.
type Passthrough struct{}

func (Passthrough) Name() string                   { return "passthrough" }
func (Passthrough) Load(ctx context.Context) error { return nil }

func (Passthrough) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return text, nil
}
