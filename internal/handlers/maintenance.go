// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"catalogd/internal/catalog"
	"catalogd/internal/models"
	"catalogd/internal/storage"
	"catalogd/internal/store"
)

const (
	defaultLogEntries = 20
	maxLogEntries     = 200
)

// recomputeResponse is the summary of a manual recompute. Errors lists
// the problems of a run that still refreshed the healthy categories.
type recomputeResponse struct {
	catalog.RecomputeSummary
	Errors []string `json:"errors,omitempty"`
}

// Recompute handles POST /maintenance/recompute: a full recount of every
// category's product counts. A run that skipped cyclic categories still
// answers 200 with its summary.
func (a *API) Recompute(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Counts.RecomputeAll(r.Context(), "manual")
	if err == nil {
		writeJSON(w, http.StatusOK, recomputeResponse{RecomputeSummary: summary})
		return
	}
	if !errors.Is(err, catalog.ErrCycleDetected) {
		slog.Error("manual recompute failed", "updated", summary.UpdatedCount, "error", err)
		fail(w, r, err)
		return
	}

	slog.Warn("manual recompute skipped cyclic categories",
		"skipped", summary.Skipped, "updated", summary.UpdatedCount, "error", err)
	writeJSON(w, http.StatusOK, recomputeResponse{
		RecomputeSummary: summary,
		Errors:           errorMessages(err),
	})
}

// errorMessages flattens a joined error into one message per cause.
func errorMessages(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		out = append(out, errorMessages(e)...)
	}
	return out
}

// RecomputeLog handles GET /maintenance/recompute/log.
func (a *API) RecomputeLog(w http.ResponseWriter, r *http.Request) {
	if a.log == nil {
		writeError(w, http.StatusNotFound, "not_available", "recompute log is not kept by this store")
		return
	}
	limit, ok := queryInt(w, r, "limit", defaultLogEntries)
	if !ok {
		return
	}
	limit = min(max(limit, 1), maxLogEntries)

	entries, err := a.log.RecentEntries(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.RecomputeLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// snapshotLinkTTL is how long the returned download link stays valid.
const snapshotLinkTTL = time.Hour

// snapshotResponse describes an exported snapshot.
type snapshotResponse struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Categories int       `json:"categories"`
	TakenAt    time.Time `json:"taken_at"`
}

// Snapshot handles POST /maintenance/snapshot: the full category tree,
// inactive categories included, is written to object storage as JSON.
func (a *API) Snapshot(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		writeError(w, http.StatusNotFound, "not_available", "snapshot storage is not configured")
		return
	}

	tree, err := a.svc.Reader.Tree(r.Context(), false)
	if err != nil {
		fail(w, r, err)
		return
	}
	body, err := json.Marshal(tree)
	if err != nil {
		fail(w, r, fmt.Errorf("encode snapshot: %w", err))
		return
	}

	taken := time.Now()
	key := storage.SnapshotKey(taken)
	if err := a.snapshots.Put(r.Context(), key, "application/json", body); err != nil {
		fail(w, r, err)
		return
	}
	url, err := a.snapshots.PresignedURL(r.Context(), key, snapshotLinkTTL)
	if err != nil {
		// The snapshot is stored; only the link is missing.
		slog.Warn("presign snapshot", "key", key, "error", err)
	}

	n := countNodes(tree)
	slog.Info("catalog snapshot exported", "key", key, "categories", n, "bytes", len(body))
	writeJSON(w, http.StatusCreated, snapshotResponse{Key: key, URL: url, Categories: n, TakenAt: taken})
}

func countNodes(tree []models.Category) int {
	n := len(tree)
	for _, c := range tree {
		n += countNodes(c.Children)
	}
	return n
}
