package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mdsearch/internal/indexer/index"
	"mdsearch/internal/searcher/cache"
	"mdsearch/internal/searcher/executor"
	"mdsearch/internal/searcher/handler"
	"mdsearch/internal/store"
	"mdsearch/internal/syncer"
	"mdsearch/pkg/config"
	"mdsearch/pkg/health"
	"mdsearch/pkg/logger"
	"mdsearch/pkg/metrics"
	"mdsearch/pkg/middleware"
	pkgredis "mdsearch/pkg/redis"
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
	slog.Info("starting markdown search service",
		"port", cfg.Server.Port,
		"root", cfg.Watcher.Root,
		"db", cfg.Storage.Path,
	)

	docs, err := store.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open document store", "path", cfg.Storage.Path, "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix := index.New()
	syncOpts := []syncer.Option{}
	if queryCache != nil {
		syncOpts = append(syncOpts, syncer.WithCache(queryCache))
	}
	if m != nil {
		syncOpts = append(syncOpts, syncer.WithMetrics(m))
	}
	syn := syncer.New(cfg.Watcher.Root, cfg.Watcher.Extensions, docs, ix, syncOpts...)

	// Populate the index from the source tree before accepting queries.
	if err := syn.Rebuild(ctx); err != nil {
		slog.Error("initial index build failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index built", "documents", ix.DocCount(), "terms", ix.TermCount())

	watcher, err := syncer.NewWatcher(cfg.Watcher.Root, cfg.Watcher.Extensions, cfg.Watcher.QueueSize, m)
	if err != nil {
		slog.Error("failed to start filesystem watcher", "root", cfg.Watcher.Root, "error", err)
		os.Exit(1)
	}

	go func() {
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("watcher stopped", "error", err)
		}
	}()
	go func() {
		if err := syn.Run(ctx, watcher.Events()); err != nil && err != context.Canceled {
			slog.Error("synchronizer stopped", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents", ix.DocCount()),
		}
	})
	checker.Register("store", func(ctx context.Context) health.ComponentHealth {
		if err := docs.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	exec := executor.New(ix, docs, cfg.Search.SnippetTokens)
	h := handler.New(exec, queryCache, docs, cfg.Watcher.Root, cfg.Search.DefaultLimit, cfg.Search.MaxResults, m)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.SearchPage)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /docs/{id}", h.ViewDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
