package textfilter

import (
	"context"
	"slices"
	"strings"
)

// RepetitionPolicy truncates text at the first phrase repeated back to back
// MinRepeats times, keeping the first occurrence. Looping output is the
// common failure mode of both recognition and translation models.
type RepetitionPolicy struct {
	// Phrase lengths, in words, to look for.
	MinN, MaxN int
	MinRepeats int
	// Texts with fewer words are returned untouched.
	MinWords int
	// MaxWords caps the words considered; 0 means no cap.
	MaxWords int
}

// TranscriptRepetition is tuned for recognizer output, where single words
// loop.
var TranscriptRepetition = RepetitionPolicy{MinN: 1, MaxN: 6, MinRepeats: 3, MinWords: 3, MaxWords: 200}

// TranslationRepetition ignores single-word repeats that translations
// legitimately contain.
var TranslationRepetition = RepetitionPolicy{MinN: 2, MaxN: 5, MinRepeats: 3, MinWords: 5}

// Truncate applies the policy and reports whether text changed.
func (p RepetitionPolicy) Truncate(text string) (string, bool) {
	words := strings.Fields(text)
	if len(words) < p.MinWords {
		return text, false
	}

	capped := false
	if p.MaxWords > 0 && len(words) > p.MaxWords {
		words = words[:p.MaxWords]
		capped = true
	}

	for n := p.MinN; n <= p.MaxN; n++ {
		if len(words) < n*p.MinRepeats {
			continue
		}
		for i := 0; i+n < len(words); i++ {
			phrase := words[i : i+n]
			repeats := 1
			for j := i + n; j+n <= len(words) && slices.Equal(words[j:j+n], phrase); j += n {
				repeats++
			}
			if repeats >= p.MinRepeats {
				return strings.Join(words[:i+n], " "), true
			}
		}
	}

	if capped {
		return strings.Join(words, " "), true
	}
	return text, false
}

// RepetitionFilter exposes a RepetitionPolicy as a Filter.
type RepetitionFilter struct {
	Policy RepetitionPolicy
}

func (f *RepetitionFilter) Name() string { return "repetition" }

func (f *RepetitionFilter) Process(ctx context.Context, text string) (string, error) {
	out, _ := f.Policy.Truncate(text)
	return out, nil
}
