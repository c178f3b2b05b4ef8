package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMixedScript(t *testing.T) {
	q := Parse("Python机器学习")
	assert.Equal(t, []string{"python", "机", "器", "学", "习"}, q.Terms)
	assert.Equal(t, "Python机器学习", q.Raw)
	assert.False(t, q.Empty())
}

func TestParseDeduplicatesTerms(t *testing.T) {
	q := Parse("search Search SEARCH index")
	assert.Equal(t, []string{"search", "index"}, q.Terms)
}

func TestParseFoldsDiacritics(t *testing.T) {
	q := Parse("Café zhōngwén")
	assert.Equal(t, []string{"cafe", "zhongwen"}, q.Terms)
}

func TestParseBlankQuery(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		q := Parse(raw)
		assert.True(t, q.Empty(), "query %q", raw)
		assert.Empty(t, q.Terms)
	}
}

func TestParsePunctuationOnly(t *testing.T) {
	q := Parse("!!! --- ???")
	assert.True(t, q.Empty())
}

func TestParseKeepsFirstOccurrenceOrder(t *testing.T) {
	q := Parse("beta alpha beta gamma alpha")
	assert.Equal(t, []string{"beta", "alpha", "gamma"}, q.Terms)
}
