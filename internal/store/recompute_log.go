// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// recompute_log.go records full count recomputations in the database for
// audit and debugging purposes. Each entry captures why the pass ran, how
// many categories it saw and changed, and how long it took.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"catalogd/internal/catalog"
)

// RecomputeLogStore handles count recompute log operations.
type RecomputeLogStore struct {
	db *sql.DB
}

// NewRecomputeLogStore creates a new RecomputeLogStore.
func NewRecomputeLogStore(db *sql.DB) *RecomputeLogStore {
	return &RecomputeLogStore{db: db}
}

// LogRecompute records a completed recomputation.
func (s *RecomputeLogStore) LogRecompute(ctx context.Context, reason string, summary catalog.RecomputeSummary, took time.Duration) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO count_recompute_log (reason, total_categories, updated_count, duration_ms)
		VALUES ($1, $2, $3, $4)
	`, reason, summary.TotalCategories, summary.UpdatedCount, took.Milliseconds())
	if err != nil {
		// The audit trail is best-effort.
		slog.Warn("failed to log count recompute",
			"reason", reason,
			"total", summary.TotalCategories,
			"updated", summary.UpdatedCount,
			"error", err,
		)
		return
	}
	slog.Debug("count recompute logged",
		"reason", reason,
		"updated", summary.UpdatedCount,
	)
}

// RecentEntries returns the most recent recompute events, newest first.
// Limited to the specified count.
func (s *RecomputeLogStore) RecentEntries(ctx context.Context, limit int) ([]RecomputeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reason, total_categories, updated_count, duration_ms, recorded_at
		FROM count_recompute_log
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recompute log: %w", err)
	}
	defer rows.Close()

	var entries []RecomputeLogEntry
	for rows.Next() {
		var e RecomputeLogEntry
		if err := rows.Scan(&e.ID, &e.Reason, &e.TotalCategories, &e.UpdatedCount, &e.DurationMS, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan recompute log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecomputeLogEntry represents a single recompute event.
type RecomputeLogEntry struct {
	ID              int64     `json:"id"`
	Reason          string    `json:"reason"`
	TotalCategories int       `json:"total_categories"`
	UpdatedCount    int       `json:"updated"`
	DurationMS      int64     `json:"duration_ms"`
	RecordedAt      time.Time `json:"recorded_at"`
}
