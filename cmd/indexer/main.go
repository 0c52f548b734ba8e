// Command indexer builds a search index from a document source and
// publishes it as a snapshot.
//
// Documents are read from a JSON-lines file or a Postgres table, run
// through the configured text pipeline and sealed into an index, which is
// written to the local or MinIO blob store. When Kafka is configured an
// index-built event is announced so running searchers reload.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-source jsonl|postgres] [-input docs.jsonl] [-out searchindex.json.zst]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	sourceType := flag.String("source", "", "document source: jsonl or postgres (overrides config)")
	input := flag.String("input", "", "JSON-lines document file (overrides config)")
	out := flag.String("out", "", "snapshot object name (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *sourceType != "" {
		cfg.Indexer.Source.Type = *sourceType
	}
	if *input != "" {
		cfg.Indexer.Source.Path = *input
	}
	if *out != "" {
		cfg.Snapshot.Name = *out
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	slog.Info("starting index build",
		"source", cfg.Indexer.Source.Type,
		"snapshot", cfg.Snapshot.Name,
		"store", cfg.Snapshot.Store,
	)

	m := metrics.New(nil)
	p, err := pipeline.New(cfg.Indexer.Pipeline)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	builder, err := indexer.NewBuilder(cfg.Indexer, p, m)
	if err != nil {
		return err
	}
	idx, err := builder.BuildFrom(ctx, src)
	if err != nil {
		return err
	}

	store, err := blobstore.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	size, err := snapshot.Save(ctx, store, cfg.Snapshot.Name, idx, snapshot.Options{
		Results: snapshot.ResultsOptions{
			LimitResults:    cfg.Search.DefaultLimit,
			TeaserWordCount: cfg.Search.TeaserWordCount,
		},
		Search: snapshot.SearchOptions{
			Bool:   cfg.Search.Mode,
			Expand: cfg.Search.Expand,
		},
	})
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	slog.Info("index build complete",
		"documents", idx.TotalDocs(),
		"terms", idx.Terms(),
		"bytes", size,
		"duration", elapsed,
	)

	if cfg.Kafka.Enabled() {
		announce(ctx, cfg, analytics.IndexBuiltEvent{
			Type:      analytics.EventIndexBuilt,
			Name:      cfg.Snapshot.Name,
			Documents: idx.TotalDocs(),
			Terms:     idx.Terms(),
			Bytes:     size,
			LatencyMs: elapsed.Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

// openSource returns the configured document source and a function
// releasing whatever it holds open.
func openSource(ctx context.Context, cfg *config.Config) (source.Source, func(), error) {
	switch cfg.Indexer.Source.Type {
	case "", "jsonl":
		return source.NewJSONLFile(cfg.Indexer.Source.Path, cfg.Indexer.Ref), func() {}, nil
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		fields := make([]string, len(cfg.Indexer.Fields))
		for i, f := range cfg.Indexer.Fields {
			fields[i] = f.Name
		}
		src := source.NewPostgres(client, cfg.Indexer.Source.Table, cfg.Indexer.Ref, cfg.Indexer.Source.URLColumn, fields)
		return src, func() {
			if err := client.Close(); err != nil {
				slog.Warn("closing postgres", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type %q", cfg.Indexer.Source.Type)
	}
}

// announce publishes event on the index-built topic. A failure is logged
// but does not fail the build: the snapshot is already written.
func announce(ctx context.Context, cfg *config.Config, event analytics.IndexBuiltEvent) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt, kafka.FirstPartition())
	defer producer.Close()

	err := resilience.Retry(ctx, "publish-index-built", resilience.RetryConfig{MaxAttempts: 5}, func() error {
		return producer.Publish(ctx, kafka.Event{Key: event.Name, Type: string(event.Type), Value: event})
	})
	if err != nil {
		slog.Error("announcing index failed; searchers keep the previous snapshot",
			"topic", cfg.Kafka.Topics.IndexBuilt,
			"error", err,
		)
		return
	}
	slog.Info("index announced", "topic", cfg.Kafka.Topics.IndexBuilt, "name", event.Name)
}
