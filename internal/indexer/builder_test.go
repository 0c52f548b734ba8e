package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/trie"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T, mutate func(*config.IndexerConfig)) (*Builder, *metrics.Metrics) {
	t.Helper()
	cfg := config.Default().Indexer
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := pipeline.New(cfg.Pipeline)
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	b, err := NewBuilder(cfg, p, m)
	require.NoError(t, err)
	return b, m
}

func doc(id string, fields map[string]string) source.Document {
	return source.Document{ID: id, Fields: fields}
}

func TestBuildCountsPerField(t *testing.T) {
	b, m := newBuilder(t, nil)
	require.NoError(t, b.Add(source.Document{
		ID:  "1",
		URL: "world.html",
		Fields: map[string]string{
			"title": "World",
			"body":  "The world, the whole world and nothing but the worlds.",
		},
	}))
	require.NoError(t, b.Add(doc("2", map[string]string{"title": "Storing the World"})))

	idx, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, idx.Validate())

	p := idx.Lookup("world")
	require.NotNil(t, p)
	assert.Equal(t, 2, p.DocFrequency())
	assert.Equal(t, 1.0, p.Frequency("1", "title"))
	assert.Equal(t, 3.0, p.Frequency("1", "body"))
	assert.Equal(t, 1.0, p.Frequency("2", "title"))
	assert.Nil(t, idx.Lookup("the"))

	d, ok := idx.Documents().Get("1")
	require.True(t, ok)
	assert.Equal(t, "world.html", d.URL)
	assert.Equal(t, 1, d.FieldLength("title"))
	assert.Equal(t, 5, d.FieldLength("body"))
	assert.Equal(t, "World", d.Stored["title"])

	assert.Equal(t, []string{"trimmer", "stopWordFilter", "stemmer"}, idx.Pipeline())
	assert.Equal(t, "id", idx.Ref())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexDocuments))
}

func TestBuildIgnoresUnknownFieldsAndKeepsEmptyDocuments(t *testing.T) {
	b, _ := newBuilder(t, nil)
	require.NoError(t, b.Add(doc("1", map[string]string{"summary": "unindexed words", "title": "the and of"})))
	require.NoError(t, b.Add(doc("2", nil)))

	idx, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, idx.TotalDocs())
	assert.Equal(t, 0, idx.Terms())
	assert.Nil(t, idx.Lookup("unindex"))

	d, ok := idx.Documents().Get("1")
	require.True(t, ok)
	assert.Equal(t, 0, d.FieldLength("title"))
	assert.NotContains(t, d.Stored, "summary")
}

func TestBuildDuplicateAccumulate(t *testing.T) {
	b, _ := newBuilder(t, nil)
	require.NoError(t, b.Add(doc("1", map[string]string{"title": "world"})))
	require.NoError(t, b.Add(doc("1", map[string]string{"title": "world connection"})))

	idx, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, idx.Validate())
	assert.Equal(t, 1, idx.TotalDocs())
	assert.Equal(t, 2.0, idx.Lookup("world").Frequency("1", "title"))
	assert.Equal(t, 1.0, idx.Lookup("connect").Frequency("1", "title"))

	d, _ := idx.Documents().Get("1")
	assert.Equal(t, "world connection", d.Stored["title"])
}

func TestBuildDuplicateReplace(t *testing.T) {
	b, _ := newBuilder(t, func(c *config.IndexerConfig) { c.Duplicates = DuplicatesReplace })
	require.NoError(t, b.Add(doc("1", map[string]string{"title": "minecraft world"})))
	require.NoError(t, b.Add(doc("1", map[string]string{"title": "world"})))

	idx, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 1.0, idx.Lookup("world").Frequency("1", "title"))
	assert.Nil(t, idx.Lookup("minecraft"))
}

func TestBuildSeals(t *testing.T) {
	b, _ := newBuilder(t, nil)
	require.NoError(t, b.Add(doc("1", map[string]string{"body": "text"})))
	_, err := b.Build()
	require.NoError(t, err)

	assert.ErrorIs(t, b.Add(doc("2", map[string]string{"body": "more"})), apperrors.ErrSealed)
	_, err = b.Build()
	assert.ErrorIs(t, err, apperrors.ErrSealed)
}

func TestAddRejectsMissingID(t *testing.T) {
	b, _ := newBuilder(t, nil)
	assert.ErrorIs(t, b.Add(doc("", map[string]string{"body": "x"})), apperrors.ErrInvalidInput)
}

func TestNewBuilderValidation(t *testing.T) {
	cfg := config.Default().Indexer
	p, err := pipeline.New(cfg.Pipeline)
	require.NoError(t, err)

	_, err = NewBuilder(cfg, nil, nil)
	assert.Error(t, err)

	bad := cfg
	bad.Duplicates = "merge"
	_, err = NewBuilder(bad, p, nil)
	assert.ErrorContains(t, err, "merge")

	bad = cfg
	bad.Fields = nil
	_, err = NewBuilder(bad, p, nil)
	assert.Error(t, err)
}

func TestBuildFrom(t *testing.T) {
	src := source.Slice{
		doc("1", map[string]string{"title": "Making a Connection"}),
		doc("2", map[string]string{"title": "Storing the World"}),
	}
	idx, err := Build(context.Background(), src, config.Default().Indexer)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.TotalDocs())
	assert.Equal(t, []string{"1"}, idx.Lookup("connect").DocIDs())
	assert.Equal(t, []string{"2"}, idx.Lookup("store").DocIDs())
}

func TestBuildFromSourceError(t *testing.T) {
	b, m := newBuilder(t, nil)
	boom := errors.New("boom")
	_, err := b.BuildFrom(context.Background(), failingSource{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")))
}

type failingSource struct{ err error }

func (f failingSource) Each(context.Context, func(source.Document) error) error { return f.err }

func TestBuildPostingsNeverOrphaned(t *testing.T) {
	b, _ := newBuilder(t, nil)
	for i, text := range []string{"alpha beta", "beta gamma", "gamma delta alpha", ""} {
		require.NoError(t, b.Add(doc(string(rune('a'+i)), map[string]string{"body": text, "breadcrumbs": "Guide » Alpha"})))
	}
	idx, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, idx.Validate())
	docs := idx.Documents()
	idx.Walk(func(token string, p *trie.Posting) bool {
		assert.Positive(t, p.DocFrequency(), token)
		for _, id := range p.DocIDs() {
			assert.True(t, docs.Has(id), "%s -> %s", token, id)
		}
		return true
	})
}
