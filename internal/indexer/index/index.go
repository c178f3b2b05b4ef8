// Package index implements the in-memory inverted index. Postings for a
// document are replaced as a unit under a single write lock, so readers never
// observe a half-updated document. Term statistics (document frequency, total
// token count) are maintained alongside the postings and stay consistent with
// the live postings set.
package index

import (
	"sort"
	"sync"

	"mdsearch/internal/indexer/tokenizer"
)

type docEntry struct {
	length int
	terms  []string
}

// Index maps term → docID → posting, plus per-document statistics. The
// synchronizer is the only writer; queries read through View.
type Index struct {
	mu          sync.RWMutex
	postings    map[string]map[int64]*Posting
	docs        map[int64]*docEntry
	totalTokens int64
}

func New() *Index {
	return &Index{
		postings: make(map[string]map[int64]*Posting),
		docs:     make(map[int64]*docEntry),
	}
}

// Upsert tokenizes the document fields and atomically replaces all postings
// for docID. Stale postings for terms absent from the new version are
// removed in the same critical section.
func (ix *Index) Upsert(docID int64, f Fields) {
	type termAgg struct {
		freq   int
		fields FieldSet
	}
	counts := make(map[string]*termAgg)
	length := 0

	collect := func(text string, field FieldSet) {
		for _, tok := range tokenizer.Segment(text) {
			agg := counts[tok.Term]
			if agg == nil {
				agg = &termAgg{}
				counts[tok.Term] = agg
			}
			agg.freq++
			agg.fields |= field
			length++
		}
	}
	collect(f.Title, FieldTitle)
	collect(f.Body, FieldBody)
	collect(f.Path, FieldPath)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(docID)

	terms := make([]string, 0, len(counts))
	for term, agg := range counts {
		docMap := ix.postings[term]
		if docMap == nil {
			docMap = make(map[int64]*Posting)
			ix.postings[term] = docMap
		}
		docMap[docID] = &Posting{DocID: docID, Frequency: agg.freq, Fields: agg.fields}
		terms = append(terms, term)
	}
	ix.docs[docID] = &docEntry{length: length, terms: terms}
	ix.totalTokens += int64(length)
}

// Remove deletes all postings and statistics for docID. Removing an unknown
// document is a no-op.
func (ix *Index) Remove(docID int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(docID)
}

func (ix *Index) removeLocked(docID int64) {
	entry := ix.docs[docID]
	if entry == nil {
		return
	}
	for _, term := range entry.terms {
		docMap := ix.postings[term]
		delete(docMap, docID)
		if len(docMap) == 0 {
			delete(ix.postings, term)
		}
	}
	ix.totalTokens -= int64(entry.length)
	delete(ix.docs, docID)
}

// Clear drops every posting and document statistic.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.postings = make(map[string]map[int64]*Posting)
	ix.docs = make(map[int64]*docEntry)
	ix.totalTokens = 0
}

// View copies the postings lists for the given terms and the statistics
// needed for ranking, all under one read lock, so a single query execution
// sees one committed index state. Postings lists are sorted by docID for
// determinism.
func (ix *Index) View(terms []string) View {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	v := View{
		Postings:   make(map[string][]Posting, len(terms)),
		DocLengths: make(map[int64]int),
		TotalDocs:  int64(len(ix.docs)),
	}
	if v.TotalDocs > 0 {
		v.AvgDocLength = float64(ix.totalTokens) / float64(v.TotalDocs)
	}

	for _, term := range terms {
		docMap, ok := ix.postings[term]
		if !ok {
			continue
		}
		if _, seen := v.Postings[term]; seen {
			continue
		}
		list := make([]Posting, 0, len(docMap))
		for _, p := range docMap {
			list = append(list, *p)
			if entry := ix.docs[p.DocID]; entry != nil {
				v.DocLengths[p.DocID] = entry.length
			}
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].DocID < list[j].DocID
		})
		v.Postings[term] = list
	}
	return v
}

// DocCount returns the number of indexed documents.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// TermCount returns the number of distinct terms with live postings.
func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// DocLength returns the token count of docID, or 0 if it is not indexed.
func (ix *Index) DocLength(docID int64) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if entry := ix.docs[docID]; entry != nil {
		return entry.length
	}
	return 0
}

// AvgDocLength returns the corpus-wide average document length in tokens.
func (ix *Index) AvgDocLength() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.docs) == 0 {
		return 0
	}
	return float64(ix.totalTokens) / float64(len(ix.docs))
}

// HasDoc reports whether docID currently has postings.
func (ix *Index) HasDoc(docID int64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docs[docID]
	return ok
}
