// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the JSON HTTP handlers of the catalog API.
// Handlers are grouped by concern (categories, products, maintenance) and
// receive their dependencies through the API struct.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"catalogd/internal/catalog"
	"catalogd/internal/store"
)

// maxBodyBytes caps request bodies. Bulk requests with a thousand ids fit
// comfortably.
const maxBodyBytes = 1 << 20

// RecomputeLog lists past full recomputations. Only the Postgres driver
// keeps one.
type RecomputeLog interface {
	RecentEntries(ctx context.Context, limit int) ([]store.RecomputeLogEntry, error)
}

// SnapshotStore keeps exported catalog snapshots in object storage.
type SnapshotStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// API groups all catalog HTTP handlers and their dependencies.
type API struct {
	svc       *catalog.Service
	log       RecomputeLog
	snapshots SnapshotStore
}

// NewAPI creates the handler group. log and snapshots may be nil.
func NewAPI(svc *catalog.Service, log RecomputeLog, snapshots SnapshotStore) *API {
	return &API{svc: svc, log: log, snapshots: snapshots}
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("write json response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// statusFor maps engine errors onto an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidName):
		return http.StatusBadRequest, "invalid_name"
	case errors.Is(err, catalog.ErrInvalidID):
		return http.StatusBadRequest, "invalid_id"
	case errors.Is(err, catalog.ErrInvalidBulkField):
		return http.StatusBadRequest, "invalid_bulk_field"
	case errors.Is(err, catalog.ErrSelfParent):
		return http.StatusBadRequest, "self_parent"
	case errors.Is(err, catalog.ErrCircularReference):
		return http.StatusBadRequest, "circular_reference"
	case errors.Is(err, catalog.ErrParentNotFound):
		return http.StatusUnprocessableEntity, "parent_not_found"
	case errors.Is(err, catalog.ErrDuplicateSiblingName):
		return http.StatusConflict, "duplicate_sibling_name"
	case errors.Is(err, catalog.ErrDuplicateSlug):
		return http.StatusConflict, "duplicate_slug"
	case errors.Is(err, catalog.ErrHasChildren):
		return http.StatusConflict, "has_children"
	case errors.Is(err, catalog.ErrHasProducts):
		return http.StatusConflict, "has_products"
	case errors.Is(err, catalog.ErrCycleDetected):
		return http.StatusConflict, "cycle_detected"
	case errors.Is(err, catalog.ErrCategoryNotFound):
		return http.StatusNotFound, "category_not_found"
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail reports err to the client. Unexpected errors are logged and their
// text is not leaked.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeError(w, status, code, msg)
}

// pathID parses a UUID URL parameter, writing a 400 if it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", catalog.ErrInvalidID.Error())
		return uuid.Nil, false
	}
	return id, true
}

// queryBool reads a boolean query parameter. Absent means fallback.
func queryBool(w http.ResponseWriter, r *http.Request, name string, fallback bool) (bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", name+" must be a boolean")
		return false, false
	}
	return b, true
}

// queryInt reads a non-negative integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_query", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
