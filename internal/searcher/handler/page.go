package handler

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"mdsearch/internal/highlight"
	"mdsearch/internal/searcher/executor"
	"mdsearch/internal/searcher/parser"
	"mdsearch/pkg/logger"
)

var pageTemplate = template.Must(template.New("search").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>mdsearch</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
input[type=text] { width: 70%; padding: 0.4rem; }
mark { background: #fde68a; }
.path { color: #6b7280; font-size: 0.85rem; margin: 0; }
.result { margin: 1.5rem 0; }
.result h2 { margin: 0 0 0.2rem; font-size: 1.1rem; }
.error { color: #b91c1c; }
.pager a { margin-right: 1rem; }
</style>
</head>
<body>
<h1>mdsearch</h1>
<form action="/" method="get">
<input type="text" name="q" value="{{.Query}}" placeholder="Search notes" autofocus>
<button type="submit">Search</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Query}}{{if .Results}}
<p>{{.Total}} result{{if ne .Total 1}}s{{end}}</p>
{{range .Results}}
<div class="result">
<h2><a href="/docs/{{.ID}}?q={{$.Query}}">{{.Title}}</a></h2>
<p class="path">{{.Path}}</p>
<p class="snippet">{{.Snippet}}</p>
</div>
{{end}}
<p class="pager">
{{if .HasPrev}}<a href="/?q={{.Query}}&limit={{.Limit}}&offset={{.PrevOffset}}">Previous</a>{{end}}
{{if .HasNext}}<a href="/?q={{.Query}}&limit={{.Limit}}&offset={{.NextOffset}}">Next</a>{{end}}
</p>
{{else}}{{if not .Error}}
<p>No results for &quot;{{.Query}}&quot;.</p>
{{end}}{{end}}{{end}}
</body>
</html>
`))

type pageResult struct {
	ID      int64
	Title   string
	Path    string
	Snippet template.HTML
}

type pageData struct {
	Query      string
	Results    []pageResult
	Total      int
	Limit      int
	PrevOffset int
	NextOffset int
	HasPrev    bool
	HasNext    bool
	Error      string
}

// SearchPage serves GET / with the HTML search form and, when q is present,
// the rendered result list. Unlike the JSON API, bad limit and offset values
// fall back to defaults instead of failing the page.
func (h *Handler) SearchPage(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := h.defaultLimit
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed >= 1 {
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}
	offset := 0
	if parsed, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}

	data := pageData{Query: query, Limit: limit}
	if query != "" {
		plan := parser.Parse(query)
		if plan.Empty() {
			data.Error = "the query contains no searchable terms"
			h.renderPage(w, data)
			return
		}

		var result *executor.Result
		var err error
		if h.cache != nil {
			result, _, err = h.cache.GetOrCompute(r.Context(), query, limit, offset, func() (*executor.Result, error) {
				return h.executor.Execute(r.Context(), plan, limit, offset)
			})
		} else {
			result, err = h.executor.Execute(r.Context(), plan, limit, offset)
		}
		if err != nil {
			log.Error("search page query failed", "query", query, "error", err)
			data.Error = "search failed"
			h.renderPage(w, data)
			return
		}

		data.Total = result.Total
		data.Results = make([]pageResult, 0, len(result.Hits))
		for _, hit := range result.Hits {
			data.Results = append(data.Results, pageResult{
				ID:      hit.ID,
				Title:   hit.Title,
				Path:    hit.Path,
				Snippet: safeSnippet(hit.Snippet),
			})
		}
		data.HasPrev = offset > 0
		data.PrevOffset = offset - limit
		if data.PrevOffset < 0 {
			data.PrevOffset = 0
		}
		data.HasNext = offset+limit < result.Total
		data.NextOffset = offset + limit
	}
	h.renderPage(w, data)
}

func (h *Handler) renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render search page", "error", err)
	}
}

// safeSnippet escapes everything in the snippet except the highlight marks,
// so markup living in note bodies cannot leak into the page.
func safeSnippet(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	escaped = strings.ReplaceAll(escaped, "&lt;mark&gt;", highlight.MarkOpen)
	escaped = strings.ReplaceAll(escaped, "&lt;/mark&gt;", highlight.MarkClose)
	return template.HTML(escaped)
}
