// Package indexer turns a finite sequence of documents into a sealed,
// queryable index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/trie"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Duplicate id policies.
const (
	// DuplicatesAccumulate keeps the last stored document but adds the term
	// counts of every occurrence.
	DuplicatesAccumulate = "accumulate"
	// DuplicatesReplace keeps only the last occurrence, terms included.
	DuplicatesReplace = "replace"
)

// termCounts is field -> token -> occurrences for one document.
type termCounts map[string]map[string]float64

// Builder accumulates documents and seals them into an index.Index. It is
// not safe for concurrent use.
//
// Term counts are buffered per document and only inserted into the trie
// by Build, after every document has been registered in the store, so a
// posting can never reference a document the store does not know.
type Builder struct {
	cfg      config.IndexerConfig
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
	fields   []index.Field
	docs     *index.DocumentStore
	counts   map[string]termCounts
	added    int
	sealed   bool
}

// NewBuilder creates a Builder for the fields in cfg. p must be built from
// the same PipelineConfig the query side will use. m may be nil.
func NewBuilder(cfg config.IndexerConfig, p *pipeline.Pipeline, m *metrics.Metrics) (*Builder, error) {
	if p == nil {
		return nil, fmt.Errorf("builder requires a pipeline")
	}
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("builder requires at least one field")
	}
	if cfg.Ref == "" {
		cfg.Ref = "id"
	}
	switch cfg.Duplicates {
	case "":
		cfg.Duplicates = DuplicatesAccumulate
	case DuplicatesAccumulate, DuplicatesReplace:
	default:
		return nil, fmt.Errorf("unknown duplicate policy %q", cfg.Duplicates)
	}
	fields := make([]index.Field, len(cfg.Fields))
	for i, f := range cfg.Fields {
		fields[i] = index.Field{Name: f.Name, Boost: f.Boost}
	}
	return &Builder{
		cfg:      cfg,
		pipeline: p,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer"),
		fields:   fields,
		docs:     index.NewDocumentStore(cfg.SaveDocs),
		counts:   make(map[string]termCounts),
	}, nil
}

// Add indexes one document. Fields that are not configured are ignored and
// a document whose fields produce no tokens is still registered.
func (b *Builder) Add(doc source.Document) error {
	if b.sealed {
		return apperrors.ErrSealed
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document without id", apperrors.ErrInvalidInput)
	}

	stored := make(map[string]string, len(b.fields))
	lengths := make(map[string]int, len(b.fields))
	counts := make(termCounts, len(b.fields))
	total := 0
	for _, f := range b.fields {
		text, ok := doc.Fields[f.Name]
		if !ok {
			continue
		}
		stored[f.Name] = text
		n := 0
		for tok := range b.pipeline.Process(text) {
			if counts[f.Name] == nil {
				counts[f.Name] = make(map[string]float64)
			}
			counts[f.Name][tok]++
			n++
		}
		lengths[f.Name] = n
		total += n
	}

	if prev, dup := b.counts[doc.ID]; dup {
		b.logger.Debug("duplicate document id", "doc_id", doc.ID, "policy", b.cfg.Duplicates)
		if b.cfg.Duplicates == DuplicatesAccumulate {
			merge(prev, counts)
			counts = prev
		}
	}
	b.docs.Put(index.Document{ID: doc.ID, URL: doc.URL, FieldLengths: lengths, Stored: stored})
	b.counts[doc.ID] = counts
	b.added++

	if b.metrics != nil {
		b.metrics.DocsIndexedTotal.Inc()
	}
	b.logger.Debug("document added", "doc_id", doc.ID, "token_count", total)
	return nil
}

func merge(dst, src termCounts) {
	for field, toks := range src {
		if dst[field] == nil {
			dst[field] = make(map[string]float64, len(toks))
		}
		for tok, n := range toks {
			dst[field][tok] += n
		}
	}
}

// Build seals the builder and returns the index. Every later Add or Build
// call fails with errors.ErrSealed.
func (b *Builder) Build() (*index.Index, error) {
	if b.sealed {
		return nil, apperrors.ErrSealed
	}
	b.sealed = true
	start := time.Now()

	terms := trie.New()
	for _, id := range b.docs.IDs() {
		counts := b.counts[id]
		for _, f := range b.fields {
			toks := counts[f.Name]
			for _, tok := range slices.Sorted(maps.Keys(toks)) {
				terms.Insert(tok, id, f.Name, toks[tok])
			}
		}
	}
	b.counts = nil

	idx := index.New(index.Options{
		Ref:      b.cfg.Ref,
		Version:  index.Version,
		Fields:   b.fields,
		Pipeline: b.pipeline.Names(),
	}, terms, b.docs)

	if b.metrics != nil {
		b.metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
		b.metrics.IndexTerms.Set(float64(idx.Terms()))
		b.metrics.IndexDocuments.Set(float64(idx.TotalDocs()))
	}
	b.logger.Info("index built",
		"documents", idx.TotalDocs(),
		"added", b.added,
		"terms", idx.Terms(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return idx, nil
}

// BuildFrom adds every document of src and seals the index.
func (b *Builder) BuildFrom(ctx context.Context, src source.Source) (*index.Index, error) {
	if err := src.Each(ctx, b.Add); err != nil {
		if b.metrics != nil {
			b.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	return b.Build()
}

// Build indexes every document of src with a pipeline built from
// cfg.Pipeline.
func Build(ctx context.Context, src source.Source, cfg config.IndexerConfig) (*index.Index, error) {
	p, err := pipeline.New(cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	b, err := NewBuilder(cfg, p, nil)
	if err != nil {
		return nil, err
	}
	return b.BuildFrom(ctx, src)
}
