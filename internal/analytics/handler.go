package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	RouteStats   = "/api/v1/analytics"
	RouteHistory = "/api/v1/analytics/history"

	defaultHistory = 24
	maxHistory     = 1000
)

// HistoryQuery selects persisted aggregates. An empty Index spans every
// published index.
type HistoryQuery struct {
	Index string
	Limit int
}

// HistoryEntry is one persisted aggregate and the index live when it was
// captured.
type HistoryEntry struct {
	Index      string          `json:"index"`
	CapturedAt time.Time       `json:"captured_at"`
	Stats      AggregatedStats `json:"stats"`
}

// History lists persisted aggregates, newest first.
type History interface {
	ListSnapshots(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error)
}

// Handler exposes the aggregator, and optionally its persisted history,
// over HTTP.
type Handler struct {
	aggregator *Aggregator
	history    History
	logger     *slog.Logger
}

// NewHandler serves agg. A nil history leaves RouteHistory unregistered.
func NewHandler(agg *Aggregator, history History) *Handler {
	return &Handler{
		aggregator: agg,
		history:    history,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Register mounts the analytics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+RouteStats, h.Stats)
	if h.history != nil {
		mux.HandleFunc("GET "+RouteHistory, h.History)
	}
}

// Stats serves the live aggregate. ?top=N trims the top and zero-result
// query lists.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.fail(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		stats.TopQueries = stats.TopQueries[:min(n, len(stats.TopQueries))]
		stats.ZeroResultQueries = stats.ZeroResultQueries[:min(n, len(stats.ZeroResultQueries))]
	}
	h.write(w, http.StatusOK, stats)
}

// History serves the ?limit=N (1..1000, default 24) most recent persisted
// aggregates, restricted to one published index by ?index=NAME.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistory {
			h.fail(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	q := HistoryQuery{Index: r.URL.Query().Get("index"), Limit: limit}
	entries, err := h.history.ListSnapshots(r.Context(), q)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.fail(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	h.write(w, http.StatusOK, entries)
}

func (h *Handler) fail(w http.ResponseWriter, status int, message string) {
	h.write(w, status, map[string]string{"error": message})
}

func (h *Handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
