package benchmark

import (
	"strings"
	"testing"

	"mdsearch/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"cjk":   "Python机器学习入门教程，涵盖监督学习与无监督学习的基础概念和实战案例",
	"medium": `Full text search over a directory of markdown notes requires consistent
        segmentation between indexing and querying. Latin words are folded to lower
        case and stripped of diacritics, while ideographic characters are indexed one
        character at a time so partial words still match. The inverted index maps each
        term to the documents containing it together with per-field occurrence flags.`,
	"long": strings.Repeat(`Information retrieval systems combine tokenization and
        normalization to turn raw text into searchable terms. The inverted index maps
        each term to the documents containing it, and BM25 ranking considers term
        frequency, document length normalization, and inverse document frequency to
        produce relevance scores. Incremental synchronization keeps the index aligned
        with the filesystem as notes are created, edited, and removed. `, 20),
}

func BenchmarkSegment(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := tokenizer.Segment(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkSegmentParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := tokenizer.Segment(text)
			_ = tokens
		}
	})
}

func BenchmarkTerms(b *testing.B) {
	text := sampleTexts["cjk"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		terms := tokenizer.Terms(text)
		_ = terms
	}
}
