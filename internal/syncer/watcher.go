package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"mdsearch/pkg/metrics"
)

// Watcher translates fsnotify events for the source tree into Events on a
// bounded channel. Directories are watched recursively, including ones
// created after startup; paths without an indexable extension never reach
// the channel.
type Watcher struct {
	fsw     *fsnotify.Watcher
	events  chan Event
	root    string
	exts    map[string]struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWatcher starts watching root and all of its subdirectories. queueSize
// bounds the event channel; when it is full the emitting goroutine blocks,
// applying backpressure instead of dropping events.
func NewWatcher(root string, extensions []string, queueSize int, m *metrics.Metrics) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	w := &Watcher{
		fsw:     fsw,
		events:  make(chan Event, queueSize),
		root:    filepath.Clean(root),
		exts:    exts,
		metrics: m,
		logger:  slog.Default().With("component", "watcher"),
	}
	if err := w.watchTree(w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Events returns the channel the synchronizer consumes. It is closed when
// Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run pumps filesystem notifications until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fsw.Close()

	w.logger.Info("watching source tree", "root", w.root)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		// A new directory needs its own watch, and any files moved in with
		// it only ever produce this one event.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ctx, ev.Name)
			return
		}
		w.emit(ctx, Event{Op: OpCreate, Path: ev.Name})
	case ev.Op.Has(fsnotify.Write):
		w.emit(ctx, Event{Op: OpModify, Path: ev.Name})
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		// The path is gone either way; a rename target shows up as Create.
		w.emit(ctx, Event{Op: OpDelete, Path: ev.Name})
	}
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	if _, ok := w.exts[strings.ToLower(filepath.Ext(ev.Path))]; !ok {
		return
	}
	select {
	case w.events <- ev:
		if w.metrics != nil {
			w.metrics.WatcherQueueDepth.Set(float64(len(w.events)))
		}
	case <-ctx.Done():
	}
}

// addTree registers watches for dir and its subdirectories and emits Create
// events for eligible files already inside, covering directories moved into
// the tree wholesale.
func (w *Watcher) addTree(ctx context.Context, dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if aerr := w.fsw.Add(path); aerr != nil {
				w.logger.Warn("failed to watch directory", "path", path, "error", aerr)
			}
			return nil
		}
		w.emit(ctx, Event{Op: OpCreate, Path: path})
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to register directory tree", "path", dir, "error", err)
	}
}

func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walking %s: %w", path, walkErr)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
