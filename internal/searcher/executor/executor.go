// Package executor evaluates parsed queries against the current index:
// expand clauses through the pipeline, resolve them to postings, combine
// the per-clause document sets and rank the survivors.
package executor

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/trie"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/RoaringBitmap/roaring/v2"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	// Terms are the index tokens matched by non-forbidden clauses.
	Terms []string `json:"terms,omitempty"`
	// Dropped counts clauses whose term the pipeline removed entirely.
	Dropped int `json:"dropped,omitempty"`
	// Generation is the snapshot the result was computed against.
	Generation uint64 `json:"generation"`
}

// Snapshot is an installed index together with the generation Swap gave
// it. Callers that need both read them from one Snapshot so a concurrent
// Swap cannot pair one index with another's generation.
type Snapshot struct {
	Index      *index.Index
	Generation uint64
}

// Executor is safe for concurrent use. The index it queries can be
// replaced at any time with Swap; a search in flight keeps using the index
// it started with.
type Executor struct {
	current  atomic.Pointer[Snapshot]
	swapMu   sync.Mutex
	pipeline *pipeline.Pipeline
	opts     atomic.Pointer[Options]
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates an Executor that processes query terms with p, which must be
// the pipeline the index was built with. m may be nil.
func New(p *pipeline.Pipeline, opts Options, m *metrics.Metrics) *Executor {
	e := &Executor{
		pipeline: p,
		metrics:  m,
		logger:   slog.Default().With("component", "query-executor"),
	}
	e.SetOptions(opts)
	return e
}

// Swap installs idx as the index for new searches.
func (e *Executor) Swap(idx *index.Index) {
	e.swapMu.Lock()
	var gen uint64 = 1
	if prev := e.current.Load(); prev != nil {
		gen = prev.Generation + 1
	}
	e.current.Store(&Snapshot{Index: idx, Generation: gen})
	e.swapMu.Unlock()
	e.logger.Info("index installed", "generation", gen, "documents", idx.TotalDocs(), "terms", idx.Terms())
}

// Current returns the installed snapshot, nil before the first Swap.
func (e *Executor) Current() *Snapshot {
	return e.current.Load()
}

// Index returns the current index, nil before the first Swap.
func (e *Executor) Index() *index.Index {
	if s := e.current.Load(); s != nil {
		return s.Index
	}
	return nil
}

// Generation increases on every Swap.
func (e *Executor) Generation() uint64 {
	if s := e.current.Load(); s != nil {
		return s.Generation
	}
	return 0
}

func (e *Executor) Options() Options {
	return *e.opts.Load()
}

func (e *Executor) SetOptions(opts Options) {
	if opts.Mode == parser.ModeDefault {
		opts.Mode = parser.ModeOR
	}
	e.opts.Store(&opts)
}

// expanded is a clause after the pipeline, holding exactly one token.
type expanded struct {
	parser.Clause
	token  string
	fields []index.Field
}

// clauseHits are the documents one expanded clause matched and the best
// score it gives each of them.
type clauseHits struct {
	presence parser.Presence
	docs     *roaring.Bitmap
	scores   map[uint32]float64
	tokens   []string
}

// Search evaluates q against the current snapshot and returns at most
// limit results; limit <= 0 uses the configured default. It fails only
// when no index is installed.
func (e *Executor) Search(ctx context.Context, q *parser.Query, limit int) (*SearchResult, error) {
	return e.SearchIn(ctx, e.Current(), q, limit)
}

// SearchIn is Search against snap, which may be an index Swap has since
// replaced.
func (e *Executor) SearchIn(ctx context.Context, snap *Snapshot, q *parser.Query, limit int) (*SearchResult, error) {
	if snap == nil || snap.Index == nil {
		return nil, apperrors.ErrIndexUnavailable
	}
	idx := snap.Index
	opts := e.Options()
	if limit <= 0 {
		limit = opts.Limit
	}
	result := &SearchResult{Query: q.Raw, Results: []ranker.ScoredDoc{}, Generation: snap.Generation}

	clauses, dropped := e.expand(idx, q, opts)
	result.Dropped = dropped
	if dropped > 0 && e.metrics != nil {
		e.metrics.QueryClausesDropped.Add(float64(dropped))
	}

	mode := q.Mode
	if mode == parser.ModeDefault {
		mode = opts.Mode
	}
	hits := make([]clauseHits, 0, len(clauses))
	for _, c := range clauses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits = append(hits, e.resolve(idx, c, opts))
	}

	candidates := combine(hits, mode)
	if candidates.IsEmpty() {
		return result, nil
	}
	result.TotalHits = int(candidates.GetCardinality())

	scored := make([]ranker.ScoredDoc, 0, result.TotalHits)
	it := candidates.Iterator()
	for it.HasNext() {
		ord := it.Next()
		var score float64
		for _, h := range hits {
			if h.presence != parser.Forbidden {
				score += h.scores[ord]
			}
		}
		id, _ := idx.Documents().ID(ord)
		scored = append(scored, ranker.ScoredDoc{DocID: id, Score: score})
	}
	result.Results = ranker.TopK(scored, limit)

	seen := make(map[string]struct{})
	for _, h := range hits {
		if h.presence == parser.Forbidden {
			continue
		}
		for _, tok := range h.tokens {
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				result.Terms = append(result.Terms, tok)
			}
		}
	}
	slices.Sort(result.Terms)

	e.logger.Debug("query executed",
		"query", q.Raw,
		"clauses", len(clauses),
		"dropped", dropped,
		"mode", mode.String(),
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// SearchString parses and evaluates raw.
func (e *Executor) SearchString(ctx context.Context, raw string, limit int) (*SearchResult, error) {
	return e.Search(ctx, parser.Parse(raw), limit)
}

// expand runs every clause term through the pipeline. A term producing no
// tokens is dropped; one producing several yields a clause per token.
func (e *Executor) expand(idx *index.Index, q *parser.Query, opts Options) ([]expanded, int) {
	var out []expanded
	dropped := 0
	for _, c := range q.Clauses {
		fields := e.fieldsFor(idx, c.Field, opts)
		n := 0
		for tok := range e.pipeline.Process(c.Term) {
			out = append(out, expanded{Clause: c, token: tok, fields: fields})
			n++
		}
		if n == 0 {
			dropped++
		}
	}
	return out, dropped
}

// fieldsFor resolves a field qualifier. An empty or unknown qualifier
// searches every field.
func (e *Executor) fieldsFor(idx *index.Index, name string, opts Options) []index.Field {
	all := idx.Fields()
	if name == "" {
		return all
	}
	for _, f := range all {
		if f.Name == name || (!opts.CaseSensitiveFields && strings.EqualFold(f.Name, name)) {
			return []index.Field{f}
		}
	}
	e.logger.Debug("unknown field qualifier, searching all fields", "field", name)
	return all
}

func (e *Executor) resolve(idx *index.Index, c expanded, opts Options) clauseHits {
	h := clauseHits{
		presence: c.Presence,
		docs:     roaring.New(),
		scores:   make(map[uint32]float64),
	}

	var matches []trie.Match
	kind := ranker.MatchExact
	// The parser never sets both; fuzziness also outranks Expand.
	switch {
	case c.Fuzziness > 0:
		matches, kind = idx.FuzzySearch(c.token, c.Fuzziness), ranker.MatchFuzzy
	case c.Prefix || opts.Expand:
		matches, kind = idx.PrefixSearch(c.token), ranker.MatchPrefix
	default:
		if p := idx.Lookup(c.token); p != nil {
			matches = []trie.Match{{Token: c.token, Posting: p}}
		}
	}

	total := idx.TotalDocs()
	docs := idx.Documents()
	for _, m := range matches {
		df := m.Posting.DocFrequency()
		factor := ranker.MatchFactor(kind, m.Distance, opts.ExactMatchBonus)
		matched := false
		for _, entry := range m.Posting.Entries() {
			var score float64
			hit := false
			for _, f := range c.fields {
				count := entry.Frequency(f.Name)
				if count <= 0 {
					continue
				}
				hit = true
				score += ranker.Weight(count, df, total, c.Boost, f.Boost)
			}
			if !hit {
				continue
			}
			ord, ok := docs.Ordinal(entry.DocID)
			if !ok {
				continue
			}
			matched = true
			h.docs.Add(ord)
			if s := score * factor; s > h.scores[ord] {
				h.scores[ord] = s
			}
		}
		if matched {
			h.tokens = append(h.tokens, m.Token)
		}
	}
	return h
}

// combine applies the boolean semantics: forbidden clauses exclude, required
// clauses must match, and the remaining clauses must all match in AND mode
// or at least one must in OR mode. A query without a positive clause
// matches nothing.
func combine(hits []clauseHits, mode parser.Mode) *roaring.Bitmap {
	var positive, required []*roaring.Bitmap
	forbidden := roaring.New()
	for _, h := range hits {
		switch h.presence {
		case parser.Forbidden:
			forbidden.Or(h.docs)
		case parser.Required:
			required = append(required, h.docs)
			positive = append(positive, h.docs)
		default:
			positive = append(positive, h.docs)
		}
	}
	if len(positive) == 0 {
		return roaring.New()
	}

	var out *roaring.Bitmap
	if mode == parser.ModeAND {
		out = roaring.FastAnd(positive...)
	} else {
		out = roaring.FastOr(positive...)
		for _, r := range required {
			out.And(r)
		}
	}
	out.AndNot(forbidden)
	return out
}
