package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mdsearch/internal/highlight"
	"mdsearch/internal/markdown"
	"mdsearch/internal/searcher/cache"
	"mdsearch/internal/searcher/executor"
	"mdsearch/internal/searcher/parser"
	"mdsearch/internal/store"
	pkgerrors "mdsearch/pkg/errors"
	"mdsearch/pkg/logger"
	"mdsearch/pkg/metrics"
)

// SearchExecutor abstracts query execution for testing.
type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.Query, limit, offset int) (*executor.Result, error)
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	docs         *store.Store
	root         string
	defaultLimit int
	maxResults   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New builds the search handler. queryCache and m may be nil; caching and
// metric recording are then disabled.
func New(exec SearchExecutor, queryCache *cache.QueryCache, docs *store.Store, root string, defaultLimit, maxResults int, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		docs:         docs,
		root:         root,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		metrics:      m,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=&limit=&offset=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.countQuery("invalid")
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' must not be empty")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.countQuery("invalid")
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			h.countQuery("invalid")
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	plan := parser.Parse(query)
	if plan.Empty() {
		h.countQuery("invalid")
		h.writeError(w, http.StatusBadRequest, "query contains no searchable terms")
		return
	}

	var result *executor.Result
	var err error
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, offset, func() (*executor.Result, error) {
			return h.executor.Execute(ctx, plan, limit, offset)
		})
	} else {
		result, err = h.executor.Execute(ctx, plan, limit, offset)
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.countQuery("error")
		h.writeError(w, pkgerrors.HTTPStatusCode(err), "search failed")
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	}
	if result.Total == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("hit")
	}

	log.Info("search completed",
		"query", query,
		"total", result.Total,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	h.writeJSON(w, http.StatusOK, result)
}

// GetDocument serves GET /api/v1/documents/{id} with document metadata.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.docID(w, r)
	if !ok {
		return
	}
	doc, err := h.docs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrDocumentNotFound) {
			h.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("document lookup failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// ViewDocument serves GET /docs/{id}?q= with the rendered HTML document,
// highlighting the query when one is given.
func (h *Handler) ViewDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.docID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	doc, err := h.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrDocumentNotFound) {
			h.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("document lookup failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}

	raw, err := os.ReadFile(filepath.Join(h.root, filepath.FromSlash(doc.Path)))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "document file not found on disk")
		return
	}
	html, err := markdown.RenderHTML(raw)
	if err != nil {
		h.logger.Error("markdown rendering failed", "path", doc.Path, "error", err)
		h.writeError(w, http.StatusInternalServerError, "rendering failed")
		return
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		html = highlight.Highlight(html, q)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(html)); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

func (h *Handler) docID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "document id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) countQuery(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
