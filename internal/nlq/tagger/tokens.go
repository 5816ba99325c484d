// internal/nlq/tagger/tokens.go
package tagger

import (
	"strings"
	"unicode"
)

// token is one word of the input with its character span.
type token struct {
	Text  string
	Lower string
	Start int
	End   int
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
}

// tokenize splits text into word tokens, preserving character offsets.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if isWordChar(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, newToken(text, start, i))
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, newToken(text, start, len(text)))
	}
	return tokens
}

func newToken(text string, start, end int) token {
	t := text[start:end]
	return token{Text: t, Lower: strings.ToLower(t), Start: start, End: end}
}

// occupancy records which character indexes have been claimed by an earlier,
// higher-priority pass. It is what guarantees the non-overlap invariant.
type occupancy struct {
	claimed []bool
}

func newOccupancy(n int) *occupancy {
	return &occupancy{claimed: make([]bool, n)}
}

func (o *occupancy) free(start, end int) bool {
	if start < 0 || end > len(o.claimed) || start >= end {
		return false
	}
	for i := start; i < end; i++ {
		if o.claimed[i] {
			return false
		}
	}
	return true
}

func (o *occupancy) claim(start, end int) {
	for i := start; i < end; i++ {
		o.claimed[i] = true
	}
}

// wordBounded reports whether text[start:end) sits on word boundaries, so
// "sale" does not match inside "wholesale".
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		if r := rune(text[start-1]); isWordChar(r) {
			return false
		}
	}
	if end < len(text) {
		if r := rune(text[end]); isWordChar(r) {
			return false
		}
	}
	return true
}

// findOccurrences returns the spans of every word-bounded occurrence of
// needle (lowercase) inside haystackLower.
func findOccurrences(haystackLower, needle string) [][2]int {
	var spans [][2]int
	from := 0
	for {
		idx := strings.Index(haystackLower[from:], needle)
		if idx < 0 {
			return spans
		}
		start := from + idx
		end := start + len(needle)
		if wordBounded(haystackLower, start, end) {
			spans = append(spans, [2]int{start, end})
		}
		from = start + 1
	}
}
