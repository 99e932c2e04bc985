// Package textfilter holds the optional transcript clean-up stage. Filters
// are best effort: wrap every backend in Guard so a failed or implausible
// clean-up hands back the original text.
package textfilter

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Filter rewrites a transcript.
type Filter interface {
	Name() string
	Process(ctx context.Context, text string) (string, error)
}

// MaxGrowth bounds how much longer than its input a filter's output may be
// before Guard rejects it.
const MaxGrowth = 3

type guard struct {
	next   Filter
	logger *zap.Logger
}

// Guard wraps f so that errors, empty output and output longer than
// MaxGrowth times the input all return the input unchanged.
func Guard(f Filter, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &guard{next: f, logger: logger.Named("textfilter")}
}

func (g *guard) Name() string { return g.next.Name() }

func (g *guard) Process(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	out, err := g.next.Process(ctx, text)
	if err != nil {
		g.logger.Warn("filter failed, keeping original", zap.String("filter", g.next.Name()), zap.Error(err))
		return text, nil
	}

	out = strings.TrimSpace(out)
	switch {
	case out == "":
		return text, nil
	case utf8.RuneCountInString(out) > MaxGrowth*utf8.RuneCountInString(text):
		g.logger.Warn("filter output implausibly long, keeping original",
			zap.String("filter", g.next.Name()),
			zap.Int("in", utf8.RuneCountInString(text)),
			zap.Int("out", utf8.RuneCountInString(out)))
		return text, nil
	}

	if out != text {
		g.logger.Debug("filtered", zap.String("filter", g.next.Name()), zap.String("before", text), zap.String("after", out))
	}
	return out, nil
}

// Chain runs filters in order, feeding each the previous output.
type Chain []Filter

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name()
	}
	return strings.Join(names, "+")
}

func (c Chain) Process(ctx context.Context, text string) (string, error) {
	for _, f := range c {
		var err error
		if text, err = f.Process(ctx, text); err != nil {
			return "", err
		}
	}
	return text, nil
}
