package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/teaser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

func newLoader(t *testing.T) (*loader, *blobstore.Local) {
	t.Helper()
	cfg := config.Default()
	p, err := pipeline.New(cfg.Indexer.Pipeline)
	require.NoError(t, err)

	store := blobstore.NewLocal(t.TempDir())
	base := executor.OptionsFromConfig(cfg.Search)
	exec := executor.New(p, base, nil)
	return &loader{
		store:       store,
		name:        "searchindex.json",
		pipeline:    p,
		exec:        exec,
		handler:     handler.New(exec, nil, nil, teaser.New(p, 30), nil, 100),
		base:        base,
		teaserWords: 30,
		timeout:     5 * time.Second,
		retry:       resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, Retryable: loadRetry().Retryable},
		logger:      slog.Default(),
	}, store
}

func publish(t *testing.T, store blobstore.Store, name string, docs source.Slice, opts snapshot.Options) {
	t.Helper()
	idx, err := indexer.Build(context.Background(), docs, config.Default().Indexer)
	require.NoError(t, err)
	_, err = snapshot.Save(context.Background(), store, name, idx, opts)
	require.NoError(t, err)
}

func doc(id, title, body string) source.Document {
	return source.Document{ID: id, Fields: map[string]string{"title": title, "body": body}}
}

func TestLoaderInstallsSnapshot(t *testing.T) {
	ld, store := newLoader(t)
	publish(t, store, "searchindex.json", source.Slice{
		doc("1", "Chunks", "chunk format on disk"),
		doc("2", "Protocol", "packets and handshake"),
	}, snapshot.Options{
		Results: snapshot.ResultsOptions{LimitResults: 7, TeaserWordCount: 12},
		Search:  snapshot.SearchOptions{Bool: "AND", Expand: false},
	})

	require.NoError(t, ld.Load(context.Background(), ""))
	assert.Equal(t, uint64(1), ld.exec.Generation())
	assert.Equal(t, 2, ld.exec.Index().TotalDocs())

	opts := ld.exec.Options()
	assert.Equal(t, parser.ModeAND, opts.Mode)
	assert.False(t, opts.Expand)
	assert.Equal(t, 7, opts.Limit)

	res, err := ld.exec.SearchString(context.Background(), "handshake", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "2", res.Results[0].DocID)
}

func TestLoaderKeepsPreviousIndexOnFailure(t *testing.T) {
	ld, store := newLoader(t)
	publish(t, store, "searchindex.json", source.Slice{doc("1", "Chunks", "chunk format")}, snapshot.Options{})
	require.NoError(t, ld.Load(context.Background(), ""))

	require.NoError(t, store.Put(context.Background(), "broken.json", []byte(`{"version":"0.9.5"`)))
	err := ld.Load(context.Background(), "broken.json")
	assert.ErrorIs(t, err, apperrors.ErrFormat)
	assert.Equal(t, uint64(1), ld.exec.Generation())

	err = ld.Load(context.Background(), "missing.json")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.Equal(t, uint64(1), ld.exec.Generation())
}

func TestHandleIndexBuilt(t *testing.T) {
	ld, store := newLoader(t)
	publish(t, store, "next.json", source.Slice{doc("1", "Biomes", "biome list")}, snapshot.Options{})

	msg, err := json.Marshal(analytics.IndexBuiltEvent{Type: analytics.EventIndexBuilt, Name: "next.json", Documents: 1})
	require.NoError(t, err)
	require.NoError(t, ld.HandleIndexBuilt(context.Background(), nil, msg))
	assert.Equal(t, uint64(1), ld.exec.Generation())

	other, err := json.Marshal(analytics.SearchEvent{Type: analytics.EventSearch, Query: "x"})
	require.NoError(t, err)
	require.NoError(t, ld.HandleIndexBuilt(context.Background(), nil, other))
	assert.Equal(t, uint64(1), ld.exec.Generation())

	assert.Error(t, ld.HandleIndexBuilt(context.Background(), nil, []byte("{")))
}
