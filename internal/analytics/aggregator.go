package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	DroppedClauses    int64            `json:"dropped_clauses"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	IndexBuilds       int64            `json:"index_builds"`
	LastIndex         *IndexBuiltEvent `json:"last_index,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into running statistics.
type Aggregator struct {
	mu                sync.RWMutex
	stats             AggregatedStats
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Restore seeds the counters from a persisted snapshot. Latency samples
// and query tallies are not persisted and start empty.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalSearches = s.TotalSearches
	a.stats.CacheHits = s.CacheHits
	a.stats.CacheMisses = s.CacheMisses
	a.stats.ZeroResultCount = s.ZeroResultCount
	a.stats.DroppedClauses = s.DroppedClauses
	a.stats.IndexBuilds = s.IndexBuilds
	a.stats.LastIndex = s.LastIndex
}

// HandleEvent is a kafka.MessageHandler. Undecodable messages are logged
// and skipped so one bad event cannot stall the consumer.
func (a *Aggregator) HandleEvent(_ context.Context, _ []byte, value []byte) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		a.logger.Error("failed to decode analytics event", "error", err)
		return nil
	}
	switch env.Type {
	case EventIndexBuilt:
		var e IndexBuiltEvent
		if err := json.Unmarshal(value, &e); err != nil {
			a.logger.Error("failed to decode index event", "error", err)
			return nil
		}
		a.RecordIndexBuilt(e)
	case EventSearch, EventZeroResult:
		var e SearchEvent
		if err := json.Unmarshal(value, &e); err != nil {
			a.logger.Error("failed to decode search event", "error", err)
			return nil
		}
		a.RecordSearch(e)
	default:
		a.logger.Warn("unknown analytics event", "type", env.Type)
	}
	return nil
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalSearches++
	if event.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	a.stats.DroppedClauses += int64(event.Dropped)
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.stats.ZeroResultCount++
		a.zeroResultQueries[event.Query]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) RecordIndexBuilt(event IndexBuiltEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.IndexBuilds++
	last := event
	a.stats.LastIndex = &last
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if a.stats.LastIndex != nil {
		last := *a.stats.LastIndex
		stats.LastIndex = &last
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, and keeps the first n.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
