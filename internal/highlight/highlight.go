// Package highlight marks query matches in stored text and extracts bounded
// snippets around the best match region.
//
// Keywords are derived from the query in priority order: the whole normalized
// query first, then each multi-character whitespace-delimited phrase, then
// each distinct CJK rune. Candidate spans are collected per keyword, filtered
// against markup interiors, resolved so no span overlaps another, and
// rendered in a single pass. The CJK single-rune pass runs only when no
// higher-priority keyword matched anywhere in the text. Single Latin letters
// and digits are never standalone keywords.
package highlight

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"mdsearch/internal/indexer/tokenizer"
)

const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"

	ellipsis = "..."
)

const (
	prioQuery = iota
	prioPhrase
	prioRune
)

type keyword struct {
	text string
	prio int
	cjk  bool
}

type span struct {
	start int
	end   int
	prio  int
}

// Highlight returns text with every resolved match wrapped in mark tags.
// Text without any match is returned unchanged.
func Highlight(text, query string) string {
	spans := resolve(text, query)
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(spans)*(len(MarkOpen)+len(MarkClose)))
	last := 0
	for _, sp := range spans {
		b.WriteString(text[last:sp.start])
		b.WriteString(MarkOpen)
		b.WriteString(text[sp.start:sp.end])
		b.WriteString(MarkClose)
		last = sp.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// Snippet extracts a window of at most maxTokens tokens centered on the best
// match region of body and highlights it. When body has no match the leading
// window is returned unmarked.
func Snippet(body, query string, maxTokens int) string {
	spans := resolve(body, query)
	at := 0
	if len(spans) > 0 {
		best := spans[0]
		for _, sp := range spans[1:] {
			if sp.prio < best.prio || (sp.prio == best.prio && sp.start < best.start) {
				best = sp
			}
		}
		at = best.start
	}
	window := Extract(body, at, maxTokens)
	if window == "" {
		return ""
	}
	return Highlight(window, query)
}

// Extract returns a bounded window of at most maxTokens tokens around byte
// offset at, with an ellipsis marker on every edge that does not reach the
// end of the field. Tokens follow the index segmentation: one per CJK rune,
// one per run of other letters and digits.
func Extract(text string, at int, maxTokens int) string {
	toks := tokenSpans(text)
	if len(toks) == 0 || maxTokens < 1 {
		return ""
	}

	focus := len(toks) - 1
	for i, tok := range toks {
		if at < tok[1] {
			focus = i
			break
		}
	}

	start := focus - maxTokens/2
	if start < 0 {
		start = 0
	}
	end := start + maxTokens
	if end > len(toks) {
		end = len(toks)
		start = end - maxTokens
		if start < 0 {
			start = 0
		}
	}

	out := text[toks[start][0]:toks[end-1][1]]
	if toks[start][0] > 0 {
		out = ellipsis + out
	}
	if toks[end-1][1] < len(text) {
		out = out + ellipsis
	}
	return out
}

// resolve returns the accepted, non-overlapping match spans for query within
// text, sorted by start offset. Candidates are searched on a mark-stripped
// view of the text so a query like "cafe" still lands on "café", mirroring
// how indexed terms are normalized; span offsets refer to the original text.
func resolve(text, query string) []span {
	f := foldMarks(text)
	var primary, fallback []span
	for _, kw := range buildKeywords(query) {
		cands := findCandidates(f, kw)
		if kw.prio == prioRune {
			fallback = append(fallback, cands...)
		} else {
			primary = append(primary, cands...)
		}
	}
	accepted := acceptNonOverlapping(primary)
	if len(accepted) == 0 {
		accepted = acceptNonOverlapping(fallback)
	}
	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].start < accepted[j].start
	})
	return accepted
}

func buildKeywords(query string) []keyword {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil
	}
	kws := make([]keyword, 0, len(fields)+2)

	full := strings.Join(fields, " ")
	kws = append(kws, keyword{text: full, prio: prioQuery, cjk: tokenizer.ContainsIdeograph(full)})

	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			kws = append(kws, keyword{text: f, prio: prioPhrase, cjk: tokenizer.ContainsIdeograph(f)})
		}
	}

	seen := make(map[rune]bool)
	for _, r := range query {
		if tokenizer.IsIdeograph(r) && !seen[r] {
			seen[r] = true
			kws = append(kws, keyword{text: string(r), prio: prioRune, cjk: true})
		}
	}
	return kws
}

// findCandidates collects case-insensitive occurrences of kw in the folded
// text. A keyword containing an ideograph matches as a plain substring; a
// pure-Latin keyword requires word boundaries on both sides. Candidates
// inside a markup tag are skipped. Returned spans are in source offsets.
func findCandidates(f folded, kw keyword) []span {
	sub := foldMarks(kw.text).text
	if sub == "" {
		return nil
	}
	var out []span
	from := 0
	for {
		i := indexFold(f.text, sub, from)
		if i < 0 {
			return out
		}
		end := i + len(sub)
		ok := true
		if !kw.cjk && !wordBounded(f.text, i, end) {
			ok = false
		}
		if ok && insideTag(f.text, i) {
			ok = false
		}
		if ok {
			out = append(out, span{start: f.offsets[i], end: f.offsets[end], prio: kw.prio})
		}
		from = i + 1
	}
}

// folded is a view of a string with combining marks removed and every
// surviving byte mapped back to the source offset of the rune it came from.
// offsets has one extra entry so a span ending at len(text) maps to the end
// of the source, past any trailing marks.
type folded struct {
	text    string
	offsets []int
}

// foldMarks decomposes each rune and drops its combining marks, the same
// normalization the tokenizer applies to indexed terms.
func foldMarks(s string) folded {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		if r < utf8.RuneSelf {
			b.WriteByte(byte(r))
			offsets = append(offsets, i)
			continue
		}
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		for _, dr := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, dr) {
				continue
			}
			n := b.Len()
			b.WriteRune(dr)
			for ; n < b.Len(); n++ {
				offsets = append(offsets, i)
			}
		}
	}
	offsets = append(offsets, len(s))
	return folded{text: b.String(), offsets: offsets}
}

// acceptNonOverlapping orders candidates by priority, then position, then
// length (longer first), and greedily keeps every span that does not overlap
// an already-accepted one.
func acceptNonOverlapping(cands []span) []span {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].prio != cands[j].prio {
			return cands[i].prio < cands[j].prio
		}
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].end > cands[j].end
	})
	var accepted []span
	for _, c := range cands {
		overlaps := false
		for _, a := range accepted {
			if c.start < a.end && a.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

// indexFold finds the first case-insensitive occurrence of sub in s at or
// after byte offset from, scanning rune starts. Matches are byte-aligned with
// sub, which covers ASCII case folding and exact CJK matches.
func indexFold(s, sub string, from int) int {
	n := len(sub)
	if n == 0 {
		return -1
	}
	for i := from; i+n <= len(s); {
		if strings.EqualFold(s[i:i+n], sub) {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		if size == 0 {
			return -1
		}
		i += size
	}
	return -1
}

// wordBounded reports whether the span [start,end) is not flanked by letters
// or digits.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// insideTag reports whether offset sits inside a markup tag: more unmatched
// '<' than '>' precede it.
func insideTag(text string, offset int) bool {
	head := text[:offset]
	return strings.Count(head, "<") > strings.Count(head, ">")
}

// tokenSpans returns the byte ranges of display tokens: each CJK rune is its
// own token, runs of other letters and digits form one token.
func tokenSpans(text string) [][2]int {
	var spans [][2]int
	runStart := -1
	for i, r := range text {
		switch {
		case tokenizer.IsIdeograph(r):
			if runStart >= 0 {
				spans = append(spans, [2]int{runStart, i})
				runStart = -1
			}
			spans = append(spans, [2]int{i, i + utf8.RuneLen(r)})
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if runStart < 0 {
				runStart = i
			}
		default:
			if runStart >= 0 {
				spans = append(spans, [2]int{runStart, i})
				runStart = -1
			}
		}
	}
	if runStart >= 0 {
		spans = append(spans, [2]int{runStart, len(text)})
	}
	return spans
}
