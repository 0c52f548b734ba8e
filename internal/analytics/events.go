package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventIndexBuilt EventType = "index_built"
)

// SearchEvent is published by the searcher for every answered query.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	Dropped    int       `json:"dropped,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// IndexBuiltEvent announces a snapshot written by the indexer. Searchers
// reload Name from the blob store when they receive it.
type IndexBuiltEvent struct {
	Type      EventType `json:"type"`
	Name      string    `json:"name"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	Bytes     int       `json:"bytes"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope reads only the discriminator of an event.
type envelope struct {
	Type EventType `json:"type"`
}
