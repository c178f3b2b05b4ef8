// Package parser turns raw query strings into index terms using the same
// segmentation as indexed text. Matching is conjunctive: every distinct term
// must occur in a document for it to match.
package parser

import (
	"strings"

	"mdsearch/internal/indexer/tokenizer"
)

// Query is a parsed search query.
type Query struct {
	Raw   string
	Terms []string
}

// Parse segments the query string and returns its distinct terms in first-
// occurrence order.
func Parse(query string) *Query {
	q := &Query{
		Raw:   query,
		Terms: make([]string, 0, 4),
	}
	if strings.TrimSpace(query) == "" {
		return q
	}
	seen := make(map[string]struct{})
	for _, term := range tokenizer.Terms(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		q.Terms = append(q.Terms, term)
	}
	return q
}

// Empty reports whether the query produced no terms.
func (q *Query) Empty() bool {
	return len(q.Terms) == 0
}
