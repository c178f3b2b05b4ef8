// Command reindex rebuilds the document store and inverted index from the
// source tree once and exits. Run it after bulk edits made while the server
// was down, or to repair a corrupted database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mdsearch/internal/indexer/index"
	"mdsearch/internal/store"
	"mdsearch/internal/syncer"
	"mdsearch/pkg/config"
	"mdsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	docs, err := store.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open document store", "path", cfg.Storage.Path, "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix := index.New()
	syn := syncer.New(cfg.Watcher.Root, cfg.Watcher.Extensions, docs, ix)

	slog.Info("rebuilding index", "root", cfg.Watcher.Root, "db", cfg.Storage.Path)
	if err := syn.Rebuild(ctx); err != nil {
		slog.Error("rebuild failed", "error", err)
		os.Exit(1)
	}
	slog.Info("rebuild complete", "documents", ix.DocCount(), "terms", ix.TermCount())
}
