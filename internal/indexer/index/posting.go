package index

// FieldSet records which document fields a term occurred in.
type FieldSet uint8

const (
	FieldTitle FieldSet = 1 << iota
	FieldBody
	FieldPath
)

// Has reports whether f contains all fields in other.
func (f FieldSet) Has(other FieldSet) bool {
	return f&other == other
}

// Posting is one (term, document) entry: how often the term occurs in the
// document and in which fields.
type Posting struct {
	DocID     int64
	Frequency int
	Fields    FieldSet
}

// Fields holds the indexable text of a document.
type Fields struct {
	Title string
	Body  string
	Path  string
}

// View is a consistent copy of the index state for one set of query terms,
// taken under a single read lock. Postings has an entry only for terms that
// occur in at least one document; DocLengths covers every document that
// appears in any returned postings list.
type View struct {
	Postings     map[string][]Posting
	DocLengths   map[int64]int
	TotalDocs    int64
	AvgDocLength float64
}
