package tokenizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mdsearch/internal/indexer/tokenizer"
)

func TestSegmentMixedScript(t *testing.T) {
	terms := tokenizer.Terms("Python机器学习")
	assert.Equal(t, []string{"python", "机", "器", "学", "习"}, terms)
}

func TestSegmentLatin(t *testing.T) {
	terms := tokenizer.Terms("Hello, World! foo_bar v2")
	assert.Equal(t, []string{"hello", "world", "foo", "bar", "v2"}, terms)
}

func TestSegmentCJKOnly(t *testing.T) {
	terms := tokenizer.Terms("机器学习")
	assert.Equal(t, []string{"机", "器", "学", "习"}, terms)
}

func TestSegmentEmpty(t *testing.T) {
	assert.Empty(t, tokenizer.Terms(""))
	assert.Empty(t, tokenizer.Terms("   \t\n  "))
	assert.Empty(t, tokenizer.Terms("!!! ... ---"))
}

func TestSegmentCaseFolding(t *testing.T) {
	assert.Equal(t, tokenizer.Terms("GoLang"), tokenizer.Terms("golang"))
}

func TestSegmentDiacritics(t *testing.T) {
	// Accented and unaccented spellings must produce identical terms.
	assert.Equal(t, tokenizer.Terms("cafe"), tokenizer.Terms("café"))
	assert.Equal(t, tokenizer.Terms("resume"), tokenizer.Terms("résumé"))
	// Pinyin tone marks.
	assert.Equal(t, []string{"zhongwen"}, tokenizer.Terms("zhōngwén"))
}

func TestSegmentIndexQueryConsistency(t *testing.T) {
	inputs := []string{
		"Python机器学习",
		"café 北京 notes",
		"a1b2,c3",
		"混合 mixed 文本 text",
	}
	for _, s := range inputs {
		assert.Equal(t, tokenizer.Terms(s), tokenizer.Terms(s))
	}
}

func TestSegmentPositions(t *testing.T) {
	tokens := tokenizer.Segment("go 语言 rocks")
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
	assert.Len(t, tokens, 4)
}

func TestSegmentBoundaryWithoutWhitespace(t *testing.T) {
	// CJK run embedded in Latin with no separators on either side.
	terms := tokenizer.Terms("abc中def")
	assert.Equal(t, []string{"abc", "中", "def"}, terms)
}

func TestContainsIdeograph(t *testing.T) {
	assert.True(t, tokenizer.ContainsIdeograph("机器"))
	assert.True(t, tokenizer.ContainsIdeograph("mixed机"))
	assert.False(t, tokenizer.ContainsIdeograph("latin only"))
}
