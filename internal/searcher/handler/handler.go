// Package handler serves the searcher's HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/teaser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Routes served by Register, also used as metric path labels.
const (
	RouteSearch          = "/api/v1/search"
	RouteIndex           = "/api/v1/index"
	RouteCacheStats      = "/api/v1/cache/stats"
	RouteCacheInvalidate = "/api/v1/cache/invalidate"
)

// Engine is the query side the handler drives.
type Engine interface {
	Current() *executor.Snapshot
	SearchIn(ctx context.Context, snap *executor.Snapshot, q *parser.Query, limit int) (*executor.SearchResult, error)
	Options() executor.Options
}

// Tracker receives one analytics event per answered search.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Hit is one result as presented to clients.
type Hit struct {
	DocID       string  `json:"doc_id"`
	Score       float64 `json:"score"`
	Title       string  `json:"title,omitempty"`
	Breadcrumbs string  `json:"breadcrumbs,omitempty"`
	URL         string  `json:"url,omitempty"`
	Teaser      string  `json:"teaser,omitempty"`
}

type Response struct {
	Query     string `json:"query"`
	TotalHits int    `json:"total_hits"`
	Results   []Hit  `json:"results"`
	Dropped   int    `json:"dropped,omitempty"`
}

type Handler struct {
	engine     Engine
	cache      *cache.QueryCache
	tracker    Tracker
	teaser     atomic.Pointer[teaser.Builder]
	metrics    *metrics.Metrics
	maxResults int
	logger     *slog.Logger
}

// New creates a Handler. queryCache, tracker and m may be nil.
func New(engine Engine, queryCache *cache.QueryCache, tracker Tracker, t *teaser.Builder, m *metrics.Metrics, maxResults int) *Handler {
	h := &Handler{
		engine:     engine,
		cache:      queryCache,
		tracker:    tracker,
		metrics:    m,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "search-handler"),
	}
	h.SetTeaser(t)
	return h
}

// SetTeaser replaces the teaser builder, e.g. after a snapshot with a
// different teaser_word_count is installed.
func (h *Handler) SetTeaser(t *teaser.Builder) {
	h.teaser.Store(t)
}

// Register mounts the API on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+RouteSearch, h.Search)
	mux.HandleFunc("GET "+RouteIndex, h.IndexInfo)
	mux.HandleFunc("GET "+RouteCacheStats, h.CacheStats)
	mux.HandleFunc("POST "+RouteCacheInvalidate, h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())
	ctx, span := tracing.Start(r.Context(), "search")
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	values := r.URL.Query()
	if !values.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	raw := values.Get("q")

	limit := h.engine.Options().Limit
	if limitStr := values.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	_, parseSpan := tracing.Start(ctx, "parse")
	query := parser.Parse(raw)
	parseSpan.SetAttr("clauses", len(query.Clauses))
	parseSpan.End()
	if query.Empty() {
		h.observe("empty_query", "none", start, 0)
		h.writeJSON(w, http.StatusOK, &Response{Query: raw, Results: []Hit{}})
		return
	}

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	// One snapshot serves the cache key, the search and present, so a Swap
	// mid-request cannot mix two indexes in one response.
	snap := h.engine.Current()
	var generation uint64
	if snap != nil {
		generation = snap.Generation
	}
	qctx, querySpan := tracing.Start(ctx, "query")
	search := func() (*executor.SearchResult, error) {
		_, execSpan := tracing.Start(qctx, "execute")
		defer execSpan.End()
		return h.engine.SearchIn(qctx, snap, query, limit)
	}
	if h.cache != nil && snap != nil {
		key := cache.Key{Query: raw, Limit: limit, Generation: generation, Options: h.engine.Options()}
		result, cacheHit, err = h.cache.GetOrCompute(qctx, key, search)
	} else {
		result, err = search()
	}
	querySpan.SetAttr("cache_hit", cacheHit)
	querySpan.End()
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.Error("search execution failed", "query", raw, "error", err)
		h.writeError(w, status, http.StatusText(status))
		return
	}

	_, presentSpan := tracing.Start(ctx, "present")
	resp := h.present(snap, result)
	presentSpan.End()
	latency := time.Since(start)
	resultType := "hit"
	eventType := analytics.EventSearch
	if result.TotalHits == 0 {
		resultType = "zero_result"
		eventType = analytics.EventZeroResult
	}
	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	h.observe(resultType, cacheStatus, start, len(resp.Results))

	log.Info("search completed",
		"query", raw,
		"total_hits", result.TotalHits,
		"returned", len(resp.Results),
		"dropped", result.Dropped,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:       eventType,
			Query:      raw,
			Terms:      result.Terms,
			TotalHits:  result.TotalHits,
			Returned:   len(resp.Results),
			Dropped:    result.Dropped,
			LatencyMs:  latency.Milliseconds(),
			CacheHit:   cacheHit,
			Generation: generation,
			Timestamp:  time.Now().UTC(),
			RequestID:  logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// present joins ranked ids with the stored document fields of the index
// in snap, the one result was computed against.
func (h *Handler) present(snap *executor.Snapshot, result *executor.SearchResult) *Response {
	resp := &Response{
		Query:     result.Query,
		TotalHits: result.TotalHits,
		Results:   make([]Hit, 0, len(result.Results)),
		Dropped:   result.Dropped,
	}
	var docs *index.DocumentStore
	if snap != nil && snap.Index != nil {
		docs = snap.Index.Documents()
	}
	tb := h.teaser.Load()
	for _, sd := range result.Results {
		hit := Hit{DocID: sd.DocID, Score: sd.Score}
		if docs != nil {
			if doc, ok := docs.Get(sd.DocID); ok {
				hit.URL = doc.URL
				hit.Title = doc.Stored["title"]
				hit.Breadcrumbs = doc.Stored["breadcrumbs"]
				if tb != nil {
					hit.Teaser = tb.Make(doc.Stored["body"], result.Terms)
				}
			}
		}
		resp.Results = append(resp.Results, hit)
	}
	return resp
}

func (h *Handler) observe(resultType, cacheStatus string, start time.Time, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
}

// IndexInfo describes the installed index.
func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Current()
	if snap == nil {
		h.writeError(w, http.StatusServiceUnavailable, apperrors.ErrIndexUnavailable.Error())
		return
	}
	idx := snap.Index
	type field struct {
		Name  string  `json:"name"`
		Boost float64 `json:"boost"`
	}
	var fields []field
	for _, f := range idx.Fields() {
		fields = append(fields, field{Name: f.Name, Boost: f.Boost})
	}
	opts := h.engine.Options()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"version":    idx.Version(),
		"ref":        idx.Ref(),
		"fields":     fields,
		"pipeline":   idx.Pipeline(),
		"documents":  idx.TotalDocs(),
		"terms":      idx.Terms(),
		"mode":       opts.Mode.String(),
		"expand":     opts.Expand,
		"limit":      opts.Limit,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
