package ranker

import (
	"math"
	"sort"

	"mdsearch/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

// ScoredDoc is one ranked result. Scores are positive; higher means more
// relevant.
type ScoredDoc struct {
	DocID int64   `json:"doc_id"`
	Score float64 `json:"score"`
}

// RankParams carries the corpus statistics BM25 needs.
type RankParams struct {
	TotalDocs    int64
	AvgDocLength float64
}

// Rank scores every document present in postingsPerTerm with BM25, summing
// the per-term contributions, and returns all of them ordered most relevant
// first. Ties are broken by ascending document id for determinism. The caller
// is responsible for restricting postings to conjunctive matches and for
// pagination.
func Rank(
	postingsPerTerm map[string][]index.Posting,
	params RankParams,
	docLength func(docID int64) int,
) []ScoredDoc {
	scores := make(map[int64]float64)
	for _, postings := range postingsPerTerm {
		docFreq := int64(len(postings))
		idf := computeIDF(params.TotalDocs, docFreq)
		for _, posting := range postings {
			tfNorm := computeTFNorm(
				float64(posting.Frequency),
				float64(docLength(posting.DocID)),
				params.AvgDocLength,
			)
			scores[posting.DocID] += idf * tfNorm
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{
			DocID: docID,
			Score: math.Round(score*10000) / 10000,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}

// computeIDF keeps idf positive even when every document contains the term,
// which AND matching makes the common case for rare corpora.
func computeIDF(totalDocs int64, docFreq int64) float64 {
	if docFreq == 0 {
		return 0
	}
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
