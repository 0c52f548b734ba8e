package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/blobstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Save encodes idx in the format and compression implied by name and
// writes it to store. It returns the number of bytes written.
func Save(ctx context.Context, store blobstore.Store, name string, idx *index.Index, opts Options) (int, error) {
	format, compression := ParseName(name)
	opts.Format = format
	data, err := Marshal(idx, opts)
	if err != nil {
		return 0, err
	}
	raw := len(data)
	if data, err = Compress(data, compression); err != nil {
		return 0, err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return 0, fmt.Errorf("writing snapshot %s: %w", name, err)
	}
	slog.Default().With("component", "snapshot").Info("snapshot saved",
		"name", name,
		"compression", compression.String(),
		"raw_bytes", raw,
		"bytes", len(data),
		"documents", idx.TotalDocs(),
		"terms", idx.Terms(),
	)
	return len(data), nil
}

// Load reads the snapshot called name from store and decodes it for the
// pipeline p. m may be nil.
func Load(ctx context.Context, store blobstore.Store, name string, p *pipeline.Pipeline, m *metrics.Metrics) (*Envelope, error) {
	start := time.Now()
	env, size, err := load(ctx, store, name, p)
	if m != nil {
		status := "success"
		if err != nil {
			status = "error"
			if apperrors.Is(err, apperrors.ErrFormat) {
				status = "invalid"
			}
		}
		m.SnapshotLoadsTotal.WithLabelValues(status).Inc()
		if err == nil {
			m.SnapshotBytes.Set(float64(size))
			m.IndexTerms.Set(float64(env.Index.Terms()))
			m.IndexDocuments.Set(float64(env.Index.TotalDocs()))
		}
	}
	if err != nil {
		return nil, err
	}
	slog.Default().With("component", "snapshot").Info("snapshot loaded",
		"name", name,
		"bytes", size,
		"documents", env.Index.TotalDocs(),
		"terms", env.Index.Terms(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return env, nil
}

func load(ctx context.Context, store blobstore.Store, name string, p *pipeline.Pipeline) (*Envelope, int, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, 0, fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	_, compression := ParseName(name)
	raw, err := Decompress(data, compression)
	if err != nil {
		return nil, len(data), apperrors.NewFormatError(err, "decompressing %s", name)
	}
	env, err := Unmarshal(raw, p)
	if err != nil {
		return nil, len(data), err
	}
	return env, len(data), nil
}
