// Package aggregator snapshots aggregated hitword stats to PostgreSQL so
// they survive restarts of the highlighter.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/postgres"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Schema creates the snapshot tables. Summary counters are columns so they
// can be charted without decoding the JSON payload; the ranked hitwords of
// each snapshot are kept one row per word.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS hitword_snapshots (
    id                 BIGSERIAL PRIMARY KEY,
    total_hits         BIGINT NOT NULL,
    hits_with_errors   BIGINT NOT NULL,
    total_docs_indexed BIGINT NOT NULL,
    p95_latency_ms     BIGINT NOT NULL,
    data               JSONB NOT NULL,
    captured_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS hitword_snapshots_captured_at ON hitword_snapshots (captured_at DESC)`,
	`CREATE TABLE IF NOT EXISTS hitword_snapshot_words (
    snapshot_id BIGINT NOT NULL REFERENCES hitword_snapshots (id) ON DELETE CASCADE,
    word        TEXT NOT NULL,
    count       BIGINT NOT NULL,
    PRIMARY KEY (snapshot_id, word)
)`,
}

// Snapshot is one persisted stats capture.
type Snapshot struct {
	ID         int64                     `json:"id"`
	CapturedAt time.Time                 `json:"captured_at"`
	Stats      analytics.AggregatedStats `json:"stats"`
}

// Store persists aggregated analytics snapshots in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger

	mu   sync.Mutex
	last *analytics.AggregatedStats
}

// NewStore creates a new analytics persistence store.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// SaveSnapshot persists stats unless nothing has changed since the last
// saved snapshot. It reports whether a row was written.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !changed(s.last, stats) {
		return false, nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return false, fmt.Errorf("marshaling stats: %w", err)
	}
	words, counts := wordColumns(stats.TopHitWords)

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO hitword_snapshots
			     (total_hits, hits_with_errors, total_docs_indexed, p95_latency_ms, data, captured_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			stats.TotalHits, stats.HitsWithErrors, stats.TotalDocIndexed, stats.P95LatencyMs,
			data, time.Now().UTC(),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		if len(words) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO hitword_snapshot_words (snapshot_id, word, count)
			 SELECT $1, w, c FROM unnest($2::text[], $3::bigint[]) AS t(w, c)`,
			id, pq.Array(words), pq.Array(counts),
		)
		if err != nil {
			return fmt.Errorf("inserting snapshot words: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.last = &stats
	s.logger.Info("analytics snapshot saved",
		"total_hits", stats.TotalHits,
		"hits_with_errors", stats.HitsWithErrors,
		"total_docs_indexed", stats.TotalDocIndexed,
		"words", len(words),
	)
	return true, nil
}

// LatestSnapshot loads the most recent snapshot from the database.
// Returns nil, nil if no snapshots exist yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	snaps, err := s.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, data, captured_at FROM hitword_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, limit)
	for rows.Next() {
		var (
			snap Snapshot
			data []byte
		)
		if err := rows.Scan(&snap.ID, &data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "id", snap.ID, "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// WordHistory returns the recorded count of word across the last limit
// snapshots that ranked it, newest first.
func (s *Store) WordHistory(ctx context.Context, word string, limit int) ([]analytics.WordCount, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT w.word, w.count FROM hitword_snapshot_words w
		 JOIN hitword_snapshots s ON s.id = w.snapshot_id
		 WHERE w.word = $1 ORDER BY s.captured_at DESC LIMIT $2`,
		word, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying word history: %w", err)
	}
	defer rows.Close()

	var out []analytics.WordCount
	for rows.Next() {
		var wc analytics.WordCount
		if err := rows.Scan(&wc.Word, &wc.Count); err != nil {
			return nil, fmt.Errorf("scanning word history row: %w", err)
		}
		out = append(out, wc)
	}
	return out, rows.Err()
}

// StartPeriodicSave launches a goroutine that periodically snapshots
// the aggregator's current stats to the database.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}

// Snapshots serves GET /api/v1/analytics/snapshots. With a word parameter
// it returns that word's history instead of whole snapshots.
func (s *Store) Snapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var result any
	if word := r.URL.Query().Get("word"); word != "" {
		result, err = s.WordHistory(r.Context(), word, limit)
	} else {
		result, err = s.ListSnapshots(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("listing snapshots failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxListLimit), nil
}

// changed reports whether next carries anything new compared to the last
// saved snapshot.
func changed(last *analytics.AggregatedStats, next analytics.AggregatedStats) bool {
	if last == nil {
		return true
	}
	return last.TotalHits != next.TotalHits ||
		last.HitsWithErrors != next.HitsWithErrors ||
		last.TotalDocIndexed != next.TotalDocIndexed
}

func wordColumns(top []analytics.WordCount) ([]string, []int64) {
	words := make([]string, 0, len(top))
	counts := make([]int64, 0, len(top))
	seen := make(map[string]bool, len(top))
	for _, wc := range top {
		if wc.Word == "" || seen[wc.Word] {
			continue
		}
		seen[wc.Word] = true
		words = append(words, wc.Word)
		counts = append(counts, wc.Count)
	}
	return words, counts
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
