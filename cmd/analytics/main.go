// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search events and index-built announcements from Kafka,
// aggregates them in memory (query counts, latency percentiles, cache hit
// rate, zero-result and top queries, index builds) and exposes them at
// GET /api/v1/analytics. With Postgres reachable, aggregates are restored
// on start and snapshotted periodically.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

const (
	saveInterval     = time.Minute
	historyRetention = 90 * 24 * time.Hour
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
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	if !cfg.Kafka.Enabled() {
		return errors.New("kafka.brokers must be set for the analytics service")
	}

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

	agg := analytics.NewAggregator()
	checker := health.NewChecker()
	mux := http.NewServeMux()

	var store *aggregator.Store
	var history analytics.History
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, aggregates will not persist", "error", err)
	} else {
		defer db.Close()
		store = aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		latest, err := store.Latest(ctx)
		if err != nil {
			slog.Warn("restoring aggregates failed", "error", err)
		} else if latest != nil {
			agg.Restore(*latest)
			slog.Info("aggregates restored", "total_searches", latest.TotalSearches)
		}
		checker.Register("postgres", health.Ping(db.Ping, false))
		history = store
	}

	analytics.NewHandler(agg, history).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m, analytics.RouteStats, analytics.RouteHistory, "/health/live", "/health/ready")(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	searches := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, cfg.Kafka.ConsumerGroup, agg.HandleEvent)
	builds := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt, cfg.Kafka.ConsumerGroup, agg.HandleEvent)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return searches.Start(gctx) })
	g.Go(func() error { return builds.Start(gctx) })
	if store != nil {
		g.Go(func() error {
			store.RunPeriodicSave(gctx, agg, saveInterval, historyRetention)
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
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
	return g.Wait()
}
