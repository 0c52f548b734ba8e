// Command searcher serves full-text queries over the latest index
// snapshot.
//
// On start it loads the configured snapshot from the blob store. Results
// are cached in Redis when it is reachable, search events are shipped to
// the analytics topic, and index-built announcements trigger a reload
// without downtime.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/teaser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const (
	requestTimeout = 10 * time.Second
	sweepInterval  = time.Minute
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
	slog.Info("starting search service", "port", cfg.Server.Port, "snapshot", cfg.Snapshot.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	p, err := pipeline.New(cfg.Indexer.Pipeline)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	store, err := blobstore.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}

	base := executor.OptionsFromConfig(cfg.Search)
	exec := executor.New(p, base, m)
	checker := health.NewChecker()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, serving without result cache", "addr", cfg.Redis.Addr, "error", err)
	} else {
		defer redisClient.Close()
		breaker := resilience.CircuitBreakerConfig{
			OnStateChange: func(_, to resilience.State) { m.CacheBreakerState.Set(float64(to)) },
		}
		queryCache = cache.New(cache.WithBreaker(redisClient, breaker), cfg.Redis.CacheTTL, m)
		checker.Register("redis", health.Ping(redisClient.Ping, false))
	}

	var tracker handler.Tracker
	var collector *analytics.Collector
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		collector.Start(ctx)
		tracker = collector
	}

	h := handler.New(exec, queryCache, tracker, teaser.New(p, cfg.Search.TeaserWordCount), m, cfg.Search.MaxResults)
	ld := &loader{
		store:       store,
		name:        cfg.Snapshot.Name,
		pipeline:    p,
		exec:        exec,
		handler:     h,
		cache:       queryCache,
		base:        base,
		teaserWords: cfg.Search.TeaserWordCount,
		timeout:     cfg.Snapshot.LoadTimeout,
		retry:       loadRetry(),
		metrics:     m,
		logger:      slog.Default().With("component", "snapshot-loader"),
	}
	if err := ld.Load(ctx, ""); err != nil {
		slog.Warn("no index loaded at startup; waiting for an index-built event", "error", err)
	}

	checker.Register("index", func(context.Context) health.ComponentHealth {
		snap := exec.Current()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", snap.Generation, snap.Index.TotalDocs()),
		}
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	limiter := middleware.NewRateLimiter(cfg.Search.RateLimit, cfg.Search.RateBurst)
	var chain http.Handler = mux
	chain = middleware.Timeout(requestTimeout)(chain)
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.Metrics(m,
		handler.RouteSearch,
		handler.RouteIndex,
		handler.RouteCacheStats,
		handler.RouteCacheInvalidate,
		"/health/live",
		"/health/ready",
	)(chain)
	chain = middleware.CORS(cfg.Server.AllowOrigins)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := limiter.Sweep(); n > 0 {
					slog.Debug("rate limiter swept idle clients", "removed", n)
				}
			}
		}
	})
	if cfg.Kafka.Enabled() {
		// Every replica must reload, so the consumer joins no group.
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt, "", ld.HandleIndexBuilt)
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}

	err = g.Wait()
	if collector != nil {
		collector.Close()
	}
	return err
}
