package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/teaser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/blobstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// loader installs snapshots into the running executor. Reloads are
// serialized; a failed load leaves the previous index serving.
type loader struct {
	store       blobstore.Store
	name        string
	pipeline    *pipeline.Pipeline
	exec        *executor.Executor
	handler     *handler.Handler
	cache       *cache.QueryCache
	base        executor.Options
	teaserWords int
	timeout     time.Duration
	retry       resilience.RetryConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu sync.Mutex
}

func loadRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		Retryable: func(err error) bool {
			return !apperrors.Is(err, apperrors.ErrFormat) && !errors.Is(err, blobstore.ErrNotFound)
		},
	}
}

// Load reads the snapshot called name (the configured one when empty) and
// swaps it in. The snapshot's stored search and result defaults override
// the configured ones.
func (l *loader) Load(ctx context.Context, name string) error {
	if name == "" {
		name = l.name
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	var env *snapshot.Envelope
	err := resilience.Retry(ctx, "load-snapshot", l.retry, func() error {
		return resilience.WithTimeout(ctx, l.timeout, "load-snapshot", func(ctx context.Context) error {
			var err error
			env, err = snapshot.Load(ctx, l.store, name, l.pipeline, l.metrics)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("loading snapshot %s: %w", name, err)
	}

	l.exec.SetOptions(l.base.WithSnapshot(env.Search, env.Results))
	l.exec.Swap(env.Index)

	words := env.Results.TeaserWordCount
	if words <= 0 {
		words = l.teaserWords
	}
	l.handler.SetTeaser(teaser.New(l.pipeline, words))

	if l.cache != nil {
		if _, err := l.cache.Invalidate(ctx); err != nil {
			l.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}

	l.logger.Info("snapshot installed",
		"name", name,
		"generation", l.exec.Generation(),
		"documents", env.Index.TotalDocs(),
		"terms", env.Index.Terms(),
		"duration", time.Since(start),
	)
	return nil
}

// HandleIndexBuilt is the kafka.MessageHandler for index-built
// announcements.
func (l *loader) HandleIndexBuilt(ctx context.Context, _ []byte, value []byte) error {
	event, err := kafka.DecodeJSON[analytics.IndexBuiltEvent](value)
	if err != nil {
		return err
	}
	if event.Type != analytics.EventIndexBuilt {
		return nil
	}
	l.logger.Info("index announced", "name", event.Name, "documents", event.Documents)
	return l.Load(ctx, event.Name)
}
