// Package executor runs parsed queries against the inverted index: it
// intersects postings for conjunctive matching, ranks the matches with BM25,
// applies pagination, and attaches stored fields and highlighted snippets to
// the result page.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mdsearch/internal/highlight"
	"mdsearch/internal/indexer/index"
	"mdsearch/internal/searcher/parser"
	"mdsearch/internal/searcher/ranker"
	"mdsearch/internal/store"
	pkgerrors "mdsearch/pkg/errors"
)

// Hit is one search result.
type Hit struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Result is a full search response page.
type Result struct {
	Query  string `json:"query"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Hits   []Hit  `json:"results"`
}

// Executor reads from the index and the document store.
type Executor struct {
	index         *index.Index
	docs          *store.Store
	snippetTokens int
	logger        *slog.Logger
}

func New(ix *index.Index, docs *store.Store, snippetTokens int) *Executor {
	return &Executor{
		index:         ix,
		docs:          docs,
		snippetTokens: snippetTokens,
		logger:        slog.Default().With("component", "query-executor"),
	}
}

// Execute runs the parsed query and returns the requested page. Total always
// reports the full conjunctive match count; offset at or past it yields an
// empty page, not an error.
func (e *Executor) Execute(ctx context.Context, plan *parser.Query, limit, offset int) (*Result, error) {
	result := &Result{
		Query:  plan.Raw,
		Limit:  limit,
		Offset: offset,
		Hits:   []Hit{},
	}
	if plan.Empty() {
		return nil, fmt.Errorf("%w: no searchable terms", pkgerrors.ErrInvalidQuery)
	}

	view := e.index.View(plan.Terms)

	// AND semantics: every distinct term must have postings.
	for _, term := range plan.Terms {
		if len(view.Postings[term]) == 0 {
			return result, nil
		}
	}

	candidates := intersect(plan.Terms, view.Postings)
	if len(candidates) == 0 {
		return result, nil
	}

	filtered := make(map[string][]index.Posting, len(view.Postings))
	for term, postings := range view.Postings {
		kept := make([]index.Posting, 0, len(candidates))
		for _, p := range postings {
			if _, ok := candidates[p.DocID]; ok {
				kept = append(kept, p)
			}
		}
		filtered[term] = kept
	}

	params := ranker.RankParams{
		TotalDocs:    view.TotalDocs,
		AvgDocLength: view.AvgDocLength,
	}
	ranked := ranker.Rank(filtered, params, func(docID int64) int {
		return view.DocLengths[docID]
	})

	result.Total = len(ranked)
	if offset >= len(ranked) {
		return result, nil
	}

	hits := make([]Hit, 0, limit)
	for i := offset; i < len(ranked) && len(hits) < limit; i++ {
		scored := ranked[i]
		doc, err := e.docs.GetByID(ctx, scored.DocID)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrDocumentNotFound) && !e.index.HasDoc(scored.DocID) {
				// The doc was deleted between the postings snapshot and
				// hydration; it simply no longer belongs on the page.
				result.Total--
				continue
			}
			// Postings the live index still claims but with no backing record
			// is an invariant violation, not a recoverable condition.
			e.logger.Error("postings reference missing document",
				"doc_id", scored.DocID,
				"query", plan.Raw,
				"error", err,
			)
			return nil, fmt.Errorf("%w: doc %d has postings but no record",
				pkgerrors.ErrIndexInconsistent, scored.DocID)
		}
		hits = append(hits, Hit{
			ID:      doc.ID,
			Title:   doc.Title,
			Path:    doc.Path,
			Snippet: e.snippet(doc, plan.Raw),
			Score:   scored.Score,
		})
	}
	result.Hits = hits

	e.logger.Debug("query executed",
		"query", plan.Raw,
		"terms", plan.Terms,
		"total", result.Total,
		"returned", len(result.Hits),
	)
	return result, nil
}

// snippet highlights the body window; when the match is only in the title,
// the highlighted title is used instead.
func (e *Executor) snippet(doc *store.Document, query string) string {
	snip := highlight.Snippet(doc.Body, query, e.snippetTokens)
	if !containsMark(snip) {
		if title := highlight.Highlight(doc.Title, query); containsMark(title) {
			return title
		}
	}
	return snip
}

func containsMark(s string) bool {
	return strings.Contains(s, highlight.MarkOpen)
}

// intersect returns the docIDs present in every term's postings list,
// starting from the shortest list.
func intersect(terms []string, postingsPerTerm map[string][]index.Posting) map[int64]struct{} {
	shortest := terms[0]
	for _, term := range terms[1:] {
		if len(postingsPerTerm[term]) < len(postingsPerTerm[shortest]) {
			shortest = term
		}
	}
	candidates := make(map[int64]struct{}, len(postingsPerTerm[shortest]))
	for _, p := range postingsPerTerm[shortest] {
		candidates[p.DocID] = struct{}{}
	}
	for _, term := range terms {
		if term == shortest {
			continue
		}
		docSet := make(map[int64]struct{}, len(postingsPerTerm[term]))
		for _, p := range postingsPerTerm[term] {
			docSet[p.DocID] = struct{}{}
		}
		for docID := range candidates {
			if _, ok := docSet[docID]; !ok {
				delete(candidates, docID)
			}
		}
	}
	return candidates
}
