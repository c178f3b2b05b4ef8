package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdsearch/internal/indexer/index"
)

func lengths(m map[int64]int) func(int64) int {
	return func(docID int64) int { return m[docID] }
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	postings := map[string][]index.Posting{
		"search": {
			{DocID: 1, Frequency: 5},
			{DocID: 2, Frequency: 1},
		},
	}
	params := RankParams{TotalDocs: 10, AvgDocLength: 20}
	ranked := Rank(postings, params, lengths(map[int64]int{1: 20, 2: 20}))

	require.Len(t, ranked, 2)
	assert.Equal(t, int64(1), ranked[0].DocID)
	assert.Equal(t, int64(2), ranked[1].DocID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankTieBreaksByDocID(t *testing.T) {
	postings := map[string][]index.Posting{
		"term": {
			{DocID: 9, Frequency: 2},
			{DocID: 3, Frequency: 2},
		},
	}
	params := RankParams{TotalDocs: 4, AvgDocLength: 10}
	ranked := Rank(postings, params, lengths(map[int64]int{3: 10, 9: 10}))

	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.Equal(t, int64(3), ranked[0].DocID)
	assert.Equal(t, int64(9), ranked[1].DocID)
}

func TestRankSumsPerTermContributions(t *testing.T) {
	single := map[string][]index.Posting{
		"alpha": {{DocID: 1, Frequency: 1}},
	}
	double := map[string][]index.Posting{
		"alpha": {{DocID: 1, Frequency: 1}},
		"beta":  {{DocID: 1, Frequency: 1}},
	}
	params := RankParams{TotalDocs: 5, AvgDocLength: 10}
	dl := lengths(map[int64]int{1: 10})

	one := Rank(single, params, dl)
	two := Rank(double, params, dl)
	require.Len(t, one, 1)
	require.Len(t, two, 1)
	assert.InDelta(t, one[0].Score*2, two[0].Score, 1e-4)
}

func TestRankScoresArePositive(t *testing.T) {
	// Even a term present in every document keeps a positive idf.
	postings := map[string][]index.Posting{
		"everywhere": {
			{DocID: 1, Frequency: 1},
			{DocID: 2, Frequency: 1},
			{DocID: 3, Frequency: 1},
		},
	}
	params := RankParams{TotalDocs: 3, AvgDocLength: 8}
	ranked := Rank(postings, params, lengths(map[int64]int{1: 8, 2: 8, 3: 8}))

	require.Len(t, ranked, 3)
	for _, sd := range ranked {
		assert.Greater(t, sd.Score, 0.0)
	}
}

func TestRankShorterDocumentScoresHigher(t *testing.T) {
	postings := map[string][]index.Posting{
		"term": {
			{DocID: 1, Frequency: 2},
			{DocID: 2, Frequency: 2},
		},
	}
	params := RankParams{TotalDocs: 10, AvgDocLength: 50}
	ranked := Rank(postings, params, lengths(map[int64]int{1: 10, 2: 200}))

	require.Len(t, ranked, 2)
	assert.Equal(t, int64(1), ranked[0].DocID)
}

func TestRankRoundsToFourDecimals(t *testing.T) {
	postings := map[string][]index.Posting{
		"term": {{DocID: 1, Frequency: 3}},
	}
	params := RankParams{TotalDocs: 7, AvgDocLength: 13}
	ranked := Rank(postings, params, lengths(map[int64]int{1: 17}))

	require.Len(t, ranked, 1)
	scaled := ranked[0].Score * 10000
	assert.InDelta(t, math.Round(scaled), scaled, 1e-9)
}

func TestRankEmptyPostings(t *testing.T) {
	ranked := Rank(map[string][]index.Posting{}, RankParams{TotalDocs: 3, AvgDocLength: 5}, lengths(nil))
	assert.Empty(t, ranked)
}

func TestComputeIDFRarerTermWeighsMore(t *testing.T) {
	rare := computeIDF(100, 1)
	common := computeIDF(100, 90)
	assert.Greater(t, rare, common)
	assert.Greater(t, common, 0.0)
	assert.Zero(t, computeIDF(100, 0))
}
