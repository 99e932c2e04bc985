// Package tokenizer splits text at sentence boundaries so long passages can
// be synthesized piecewise.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "st.": true, "vs.": true, "etc.": true,
	"e.g.": true, "i.e.": true, "a.m.": true, "p.m.": true, "no.": true,
}

// Sentences splits text into trimmed sentences. Western terminators end a
// sentence only before whitespace or the end of text, so decimals, URLs and
// known abbreviations stay intact. CJK terminators and newlines always end
// one.
func Sentences(text string) []string {
	runes := []rune(text)

	var out []string
	start := 0
	for i := range runes {
		if !endsAt(runes, start, i) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func endsAt(runes []rune, start, i int) bool {
	r := runes[i]
	if r == '\n' {
		return true
	}

	var next rune
	hasNext := i+1 < len(runes)
	if hasNext {
		next = runes[i+1]
		// Let runs such as "?!", "..." or a closing quote finish first.
		if isTerminator(next) || isCloser(next) {
			return false
		}
	}

	if isCloser(r) {
		if i == start || !isTerminator(runes[i-1]) {
			return false
		}
		r = runes[i-1]
	}

	switch {
	case isCJKTerminator(r):
		return true
	case r == '.' || r == '!' || r == '?':
		if hasNext && !unicode.IsSpace(next) {
			return false
		}
		if r == '.' && isAbbreviation(lastWord(runes[start:i+1])) {
			return false
		}
		return true
	}
	return false
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || isCJKTerminator(r)
}

func isCJKTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', '」', '』':
		return true
	}
	return false
}

func lastWord(runes []rune) string {
	s := strings.TrimRightFunc(string(runes), isCloser)
	if i := strings.LastIndexFunc(s, unicode.IsSpace); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimLeftFunc(s, func(r rune) bool { return r == '(' || r == '"' })
}

// isAbbreviation matches common titles and Latin abbreviations, single
// initials ("J.") and dotted acronyms ("U.S.").
func isAbbreviation(word string) bool {
	if abbreviations[strings.ToLower(word)] {
		return true
	}
	letters := 0
	for _, r := range word {
		switch {
		case r == '.':
		case unicode.IsUpper(r):
			letters++
		default:
			return false
		}
	}
	if letters == 1 {
		return true
	}
	return letters > 1 && strings.Count(word, ".") == letters
}

// Chunk groups sentences into pieces of at most maxLen runes. Sentences
// longer than maxLen are cut at the last space that fits, or hard-cut when
// there is none. maxLen <= 0 returns the trimmed text as one chunk.
func Chunk(text string, maxLen int) []string {
	if maxLen <= 0 {
		if s := strings.TrimSpace(text); s != "" {
			return []string{s}
		}
		return nil
	}

	var (
		out []string
		cur strings.Builder
	)
	for _, sentence := range Sentences(text) {
		for _, piece := range splitLong(sentence, maxLen) {
			if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+1+utf8.RuneCountInString(piece) > maxLen {
				out = append(out, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(piece)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func splitLong(s string, maxLen int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > maxLen {
		cut := maxLen
		for j := maxLen; j > 0; j-- {
			if unicode.IsSpace(runes[j]) {
				cut = j
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
