// Package tokenizer provides CJK-aware text segmentation for the search
// engine. It strips diacritic marks via canonical decomposition, emits each
// Han ideograph as its own term, and groups runs of other letters and digits
// into single case-folded terms. Whitespace and punctuation separate terms
// and are dropped.
//
// The same segmentation is applied to indexed text and to incoming queries;
// a source string must tokenize identically on both paths.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Token represents a single normalised term and its ordinal position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// stripMarks decomposes text (NFD), removes combining marks, and recomposes,
// so accented and unaccented spellings produce the identical term.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Segment breaks text into an ordered sequence of Tokens. A token boundary is
// inserted at every CJK/non-CJK transition even when no whitespace is
// present, so "Python机器学习" yields python, 机, 器, 学, 习.
func Segment(text string) []Token {
	text = normalize(text)
	tokens := make([]Token, 0, len(text)/4)
	var run strings.Builder
	pos := 0

	flush := func() {
		if run.Len() == 0 {
			return
		}
		tokens = append(tokens, Token{Term: strings.ToLower(run.String()), Position: pos})
		pos++
		run.Reset()
	}

	for _, r := range text {
		switch {
		case isIdeograph(r):
			flush()
			tokens = append(tokens, Token{Term: string(r), Position: pos})
			pos++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			run.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// Terms returns just the term strings of Segment, in order.
func Terms(text string) []string {
	tokens := Segment(text)
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Term
	}
	return out
}

// IsIdeograph reports whether r is a CJK ideograph.
func IsIdeograph(r rune) bool {
	return isIdeograph(r)
}

// ContainsIdeograph reports whether s contains at least one CJK ideograph.
func ContainsIdeograph(s string) bool {
	for _, r := range s {
		if isIdeograph(r) {
			return true
		}
	}
	return false
}

func isIdeograph(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func normalize(text string) string {
	out, _, err := transform.String(stripMarks, text)
	if err != nil {
		return text
	}
	return out
}
