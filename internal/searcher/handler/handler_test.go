package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdsearch/internal/indexer/index"
	"mdsearch/internal/markdown"
	"mdsearch/internal/searcher/executor"
	"mdsearch/internal/store"
)

type env struct {
	handler *Handler
	docs    *store.Store
	ix      *index.Index
	root    string
	mux     *http.ServeMux
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	docs, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	ix := index.New()
	exec := executor.New(ix, docs, 10)
	h := New(exec, nil, docs, root, 20, 100, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.SearchPage)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /docs/{id}", h.ViewDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)

	return &env{handler: h, docs: docs, ix: ix, root: root, mux: mux}
}

// addDoc writes the file under the root and indexes it, mirroring what the
// synchronizer does.
func (e *env) addDoc(t *testing.T, rel, raw string) int64 {
	t.Helper()
	abs := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(raw), 0o644))

	doc, err := markdown.Parse(rel, []byte(raw))
	require.NoError(t, err)
	id, err := e.docs.Upsert(context.Background(), &store.Document{
		Path:    rel,
		Title:   doc.Title,
		Summary: doc.Summary,
		Body:    doc.Body,
	})
	require.NoError(t, err)
	e.ix.Upsert(id, index.Fields{Title: doc.Title, Body: doc.Body, Path: rel})
	return id
}

func (e *env) get(t *testing.T, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) *executor.Result {
	t.Helper()
	var res executor.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return &res
}

func TestSearchReturnsResults(t *testing.T) {
	e := newEnv(t)
	e.addDoc(t, "guide.md", "# Search Guide\n\nhow ranking works in practice")
	e.addDoc(t, "other.md", "# Other\n\nnothing relevant")

	rec := e.get(t, "/api/v1/search?q=ranking")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	res := decodeResult(t, rec)
	assert.Equal(t, "ranking", res.Query)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 20, res.Limit)
	assert.Equal(t, 0, res.Offset)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Search Guide", res.Hits[0].Title)
}

func TestSearchBlankQuery(t *testing.T) {
	e := newEnv(t)

	for _, url := range []string{"/api/v1/search", "/api/v1/search?q=", "/api/v1/search?q=%20%20"} {
		rec := e.get(t, url)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "url %s", url)
	}
}

func TestSearchPunctuationOnlyQuery(t *testing.T) {
	e := newEnv(t)
	rec := e.get(t, "/api/v1/search?q=%21%21%21")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchInvalidLimitAndOffset(t *testing.T) {
	e := newEnv(t)
	e.addDoc(t, "a.md", "# A\n\nsome words")

	for _, url := range []string{
		"/api/v1/search?q=words&limit=0",
		"/api/v1/search?q=words&limit=-3",
		"/api/v1/search?q=words&limit=abc",
		"/api/v1/search?q=words&offset=-1",
		"/api/v1/search?q=words&offset=abc",
	} {
		rec := e.get(t, url)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "url %s", url)
	}
}

func TestSearchLimitCappedAtMax(t *testing.T) {
	e := newEnv(t)
	e.addDoc(t, "a.md", "# A\n\ncapped query")

	rec := e.get(t, "/api/v1/search?q=capped&limit=100000")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, 100, res.Limit)
}

func TestSearchPaginationWindow(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		e.addDoc(t, "d"+strconv.Itoa(i)+".md", "# Doc\n\npaging sample number "+strconv.Itoa(i))
	}

	rec := e.get(t, "/api/v1/search?q=paging&limit=2&offset=4")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, 5, res.Total)
	assert.Len(t, res.Hits, 1)

	rec = e.get(t, "/api/v1/search?q=paging&limit=2&offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeResult(t, rec)
	assert.Equal(t, 5, res.Total)
	assert.Empty(t, res.Hits)
}

func TestGetDocument(t *testing.T) {
	e := newEnv(t)
	id := e.addDoc(t, "meta.md", "# Metadata\n\nsummary lives here")

	rec := e.get(t, "/api/v1/documents/"+strconv.FormatInt(id, 10))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc store.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "Metadata", doc.Title)
	assert.Equal(t, "meta.md", doc.Path)
	// Body is excluded from the JSON representation.
	assert.NotContains(t, rec.Body.String(), `"body"`)
}

func TestGetDocumentNotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.get(t, "/api/v1/documents/424242")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDocumentInvalidID(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"abc", "0", "-5"} {
		rec := e.get(t, "/api/v1/documents/"+id)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "id %s", id)
	}
}

func TestViewDocumentRendersHTML(t *testing.T) {
	e := newEnv(t)
	id := e.addDoc(t, "page.md", "# Rendered Page\n\nsome **bold** text")

	rec := e.get(t, "/docs/"+strconv.FormatInt(id, 10))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<h1")
	assert.Contains(t, body, "Rendered Page")
	assert.Contains(t, body, "<strong>bold</strong>")
}

func TestViewDocumentHighlightsQuery(t *testing.T) {
	e := newEnv(t)
	id := e.addDoc(t, "hl.md", "# Title\n\nthe indexing pipeline explained")

	rec := e.get(t, "/docs/"+strconv.FormatInt(id, 10)+"?q=indexing")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<mark>indexing</mark>")
}

func TestViewDocumentFileMissingOnDisk(t *testing.T) {
	e := newEnv(t)
	id := e.addDoc(t, "stale.md", "# Stale\n\nabout to disappear")
	require.NoError(t, os.Remove(filepath.Join(e.root, "stale.md")))

	rec := e.get(t, "/docs/"+strconv.FormatInt(id, 10))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCacheStatsDisabled(t *testing.T) {
	e := newEnv(t)
	rec := e.get(t, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disabled", body["status"])
}

func TestSearchPageWithoutQuery(t *testing.T) {
	e := newEnv(t)
	rec := e.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `name="q"`)
	assert.NotContains(t, body, "No results")
}

func TestSearchPageShowsResults(t *testing.T) {
	e := newEnv(t)
	id := e.addDoc(t, "guide.md", "# Search Guide\n\nhow ranking works in practice")

	rec := e.get(t, "/?q=ranking")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "1 result")
	assert.Contains(t, body, "Search Guide")
	assert.Contains(t, body, "guide.md")
	assert.Contains(t, body, "<mark>ranking</mark>")
	assert.Contains(t, body, "/docs/"+strconv.FormatInt(id, 10)+"?q=ranking")
}

func TestSearchPageNoResultsMessage(t *testing.T) {
	e := newEnv(t)
	e.addDoc(t, "a.md", "# A\n\nsome words")

	rec := e.get(t, "/?q=nonexistentterm")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No results")
}

func TestSearchPageEscapesBodyMarkup(t *testing.T) {
	e := newEnv(t)
	e.addDoc(t, "x.md", "# X\n\n<script>alert(1)</script> injected keyword here")

	rec := e.get(t, "/?q=injected")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "<mark>injected</mark>")
}

func TestSearchPagePagination(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		e.addDoc(t, "p"+strconv.Itoa(i)+".md", "# Doc\n\npaged entry number "+strconv.Itoa(i))
	}

	rec := e.get(t, "/?q=paged&limit=2&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Previous")
	assert.Contains(t, body, "Next")
	assert.Contains(t, body, "offset=0")
	assert.Contains(t, body, "offset=4")
}
