// Package syncer reconciles filesystem state with the document store and the
// inverted index. A single Syncer owns all index writes: filesystem events
// are consumed from a bounded channel by one goroutine, and full rebuilds are
// serialized against incremental applies on the same mutex.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mdsearch/internal/indexer/index"
	"mdsearch/internal/markdown"
	"mdsearch/internal/store"
	pkgerrors "mdsearch/pkg/errors"
	"mdsearch/pkg/metrics"
)

// Op is a filesystem change kind.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one filesystem change for a file path (absolute or root-relative).
// Directory events are filtered before they reach the Syncer.
type Event struct {
	Op   Op
	Path string
}

// Invalidator drops cached query results after index mutations.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Option configures optional Syncer collaborators.
type Option func(*Syncer)

// WithCache registers a query cache to invalidate after every mutation.
func WithCache(inv Invalidator) Option {
	return func(s *Syncer) { s.cache = inv }
}

// WithMetrics registers Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// Syncer applies filesystem state to the store and index.
type Syncer struct {
	root    string
	exts    map[string]struct{}
	docs    *store.Store
	index   *index.Index
	cache   Invalidator
	metrics *metrics.Metrics

	// mu serializes every mutation: incremental applies and full rebuilds.
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a Syncer for the tree rooted at root. Extensions are compared
// case-insensitively and must include the leading dot.
func New(root string, extensions []string, docs *store.Store, ix *index.Index, opts ...Option) *Syncer {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	s := &Syncer{
		root:   filepath.Clean(root),
		exts:   exts,
		docs:   docs,
		index:  ix,
		logger: slog.Default().With("component", "syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run consumes events until ctx is cancelled or the channel closes. An
// in-flight apply always completes before Run returns, so cancellation never
// leaves partial postings. Per-path ordering is preserved because a single
// goroutine drains a single channel.
func (s *Syncer) Run(ctx context.Context, events <-chan Event) error {
	s.logger.Info("synchronizer started", "root", s.root)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("synchronizer stopping")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.logger.Info("event channel closed, synchronizer stopping")
				return nil
			}
			if err := s.Apply(ctx, ev); err != nil {
				// One bad file must not stop the stream.
				s.logger.Error("failed to apply event",
					"op", ev.Op.String(),
					"path", ev.Path,
					"error", err,
				)
			}
		}
	}
}

// Apply reconciles one event. Ineligible paths are ignored before any store
// or index operation; deleting a path that was never indexed is a no-op.
func (s *Syncer) Apply(ctx context.Context, ev Event) error {
	if !s.Eligible(ev.Path) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch ev.Op {
	case OpCreate, OpModify:
		err = s.indexFile(ctx, ev.Path)
	case OpDelete:
		err = s.removeFile(ctx, ev.Path)
	default:
		return fmt.Errorf("unknown op %d for %s", ev.Op, ev.Path)
	}
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.WatcherEventsTotal.WithLabelValues(ev.Op.String()).Inc()
		s.metrics.IndexDocCount.Set(float64(s.index.DocCount()))
	}
	s.invalidate(ctx)
	return nil
}

// Rebuild clears the index and document table, then re-walks the source tree
// and indexes every eligible file. Files missing at scan time do not survive
// the rebuild regardless of prior state. A parse failure on one file is
// logged and skipped.
func (s *Syncer) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.index.Clear()
	if err := s.docs.Clear(ctx); err != nil {
		s.countRebuild("error")
		return fmt.Errorf("clearing document table: %w", err)
	}

	indexed, skipped := 0, 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("walk error, skipping entry", "path", path, "error", walkErr)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !s.Eligible(path) {
			return nil
		}
		if ierr := s.indexFile(ctx, path); ierr != nil {
			skipped++
			s.logger.Warn("skipping file during rebuild", "path", path, "error", ierr)
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		s.countRebuild("error")
		return fmt.Errorf("rebuilding index: %w", err)
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RebuildDuration.Observe(duration.Seconds())
		s.metrics.IndexDocCount.Set(float64(s.index.DocCount()))
	}
	s.countRebuild("success")
	s.invalidate(ctx)
	s.logger.Info("full rebuild complete",
		"indexed", indexed,
		"skipped", skipped,
		"duration", duration.Round(time.Millisecond).String(),
	)
	return nil
}

// Eligible reports whether path has an indexable extension.
func (s *Syncer) Eligible(path string) bool {
	_, ok := s.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (s *Syncer) indexFile(ctx context.Context, path string) error {
	abs := s.abs(path)
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("reading %s: %w", abs, err)
	}
	doc, err := markdown.Parse(abs, raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", abs, err)
	}
	rel := s.rel(abs)

	id, err := s.docs.Upsert(ctx, &store.Document{
		Path:    rel,
		Title:   doc.Title,
		Summary: doc.Summary,
		Body:    doc.Body,
		MTime:   info.ModTime(),
	})
	if err != nil {
		return err
	}
	s.index.Upsert(id, index.Fields{
		Title: doc.Title,
		Body:  doc.Body,
		Path:  rel,
	})
	if s.metrics != nil {
		s.metrics.DocsIndexedTotal.Inc()
	}
	s.logger.Debug("indexed document", "path", rel, "doc_id", id, "title", doc.Title)
	return nil
}

func (s *Syncer) removeFile(ctx context.Context, path string) error {
	rel := s.rel(s.abs(path))
	doc, err := s.docs.GetByPath(ctx, rel)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrDocumentNotFound) {
			return nil
		}
		return err
	}
	// Postings go first: a query hydrating this id from an older snapshot
	// must still find the row for as long as the index claims the doc.
	s.index.Remove(doc.ID)
	if _, _, err := s.docs.Delete(ctx, rel); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.DocsRemovedTotal.Inc()
	}
	s.logger.Debug("removed document", "path", rel, "doc_id", doc.ID)
	return nil
}

func (s *Syncer) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("query cache invalidation failed", "error", err)
	}
}

func (s *Syncer) countRebuild(status string) {
	if s.metrics != nil {
		s.metrics.RebuildsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Syncer) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.root, path)
}

// rel returns the normalized root-relative path used as the document key.
// Paths outside the root keep their cleaned slash form.
func (s *Syncer) rel(abs string) string {
	r, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(r, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}
