// Package aggregator persists the analytics aggregate in Postgres. Each
// row records which index snapshot was live when it was captured, so the
// history of search quality can be read per published index.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS search_stats (
    id             BIGSERIAL PRIMARY KEY,
    index_name     TEXT        NOT NULL DEFAULT '',
    index_docs     INTEGER     NOT NULL DEFAULT 0,
    total_searches BIGINT      NOT NULL,
    zero_results   BIGINT      NOT NULL,
    stats          JSONB       NOT NULL,
    captured_at    TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS search_stats_index_time ON search_stats (index_name, captured_at DESC)`,
}

// Store writes aggregate rows and reads them back for restore and history.
type Store struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger

	// last is the most recently written aggregate, used to skip rows
	// that would repeat it.
	last *analytics.AggregatedStats
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, nil, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating analytics schema: %w", err)
			}
		}
		return nil
	})
}

// unchanged reports whether next carries no new searches or builds since
// prev, in which case a row would only repeat prev.
func unchanged(prev *analytics.AggregatedStats, next analytics.AggregatedStats) bool {
	return prev != nil &&
		prev.TotalSearches == next.TotalSearches &&
		prev.IndexBuilds == next.IndexBuilds
}

func indexOf(stats analytics.AggregatedStats) (name string, docs int) {
	if stats.LastIndex == nil {
		return "", 0
	}
	return stats.LastIndex.Name, stats.LastIndex.Documents
}

// Save writes stats as a new row attributed to the index it last saw
// built. It is a no-op when nothing happened since the previous Save.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	if unchanged(s.last, stats) {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	name, docs := indexOf(stats)
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO search_stats (index_name, index_docs, total_searches, zero_results, stats, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		name, docs, stats.TotalSearches, stats.ZeroResultCount, data, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving stats for index %q: %w", name, err)
	}
	s.last = &stats
	s.logger.Debug("stats saved", "index", name, "total_searches", stats.TotalSearches)
	return nil
}

// Latest returns the most recent row's stats, or nil when the table is
// empty.
func (s *Store) Latest(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT stats FROM search_stats ORDER BY captured_at DESC, id DESC LIMIT 1`,
	).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading latest stats: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decoding latest stats: %w", err)
	}
	s.last = &stats
	return &stats, nil
}

// historyQuery builds the SELECT for q. An empty q.Index spans every index.
func historyQuery(q analytics.HistoryQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT index_name, captured_at, stats FROM search_stats`)
	args := []any{}
	if q.Index != "" {
		args = append(args, q.Index)
		sb.WriteString(` WHERE index_name = $1`)
	}
	args = append(args, q.Limit)
	fmt.Fprintf(&sb, ` ORDER BY captured_at DESC, id DESC LIMIT $%d`, len(args))
	return sb.String(), args
}

// ListSnapshots implements analytics.History.
func (s *Store) ListSnapshots(ctx context.Context, q analytics.HistoryQuery) ([]analytics.HistoryEntry, error) {
	query, args := historyQuery(q)
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stats history: %w", err)
	}
	defer rows.Close()

	var out []analytics.HistoryEntry
	for rows.Next() {
		var (
			e    analytics.HistoryEntry
			data []byte
		)
		if err := rows.Scan(&e.Index, &e.CapturedAt, &data); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		if err := json.Unmarshal(data, &e.Stats); err != nil {
			s.logger.Warn("skipping undecodable stats row", "index", e.Index, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes rows captured before now minus retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM search_stats WHERE captured_at < $1`, s.now().Add(-retention).UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning stats history: %w", err)
	}
	return res.RowsAffected()
}

// RunPeriodicSave saves agg every interval and prunes rows older than
// retention (zero keeps everything). When ctx is done it saves once more
// and returns.
func (s *Store) RunPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, agg.Stats()); err != nil {
				s.logger.Error("periodic save failed", "error", err)
			}
			if retention > 0 {
				if n, err := s.Prune(ctx, retention); err != nil {
					s.logger.Error("pruning history failed", "error", err)
				} else if n > 0 {
					s.logger.Info("history pruned", "rows", n)
				}
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Save(final, agg.Stats()); err != nil {
				s.logger.Error("final save failed", "error", err)
			}
			return
		}
	}
}
