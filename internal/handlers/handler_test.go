// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Handlers run against the in-memory store, so no services are needed.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"catalogd/internal/catalog"
	"catalogd/internal/models"
	"catalogd/internal/store"
	"catalogd/internal/store/memstore"
)

// fakeLog is an in-memory RecomputeLog.
type fakeLog struct {
	entries []store.RecomputeLogEntry
	limit   int
}

func (f *fakeLog) RecentEntries(_ context.Context, limit int) ([]store.RecomputeLogEntry, error) {
	f.limit = limit
	return f.entries, nil
}

// testAPI returns an API over a fresh memory store.
func testAPI(t *testing.T) (*API, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewAPI(catalog.New(st, nil, nil), nil, nil), st
}

// call invokes h with the given URL params set the way chi would.
func call(t *testing.T, h http.HandlerFunc, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

// expectError asserts the status and error code of a failed request.
func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Errorf("status: got %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	body := decodeBody[errorResponse](t, rr)
	if body.Code != code {
		t.Errorf("code: got %q, want %q", body.Code, code)
	}
}

// createCategory creates a category through the API.
func createCategory(t *testing.T, a *API, name string, parent *uuid.UUID) models.Category {
	t.Helper()
	body := `{"name":` + jsonString(name)
	if parent != nil {
		body += `,"parent_id":"` + parent.String() + `"`
	}
	body += `}`
	rr := call(t, a.CreateCategory, http.MethodPost, "/api/v1/categories", body, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create %q: status %d, body %s", name, rr.Code, rr.Body.String())
	}
	return decodeBody[models.Category](t, rr)
}

// createProduct creates an active product through the API.
func createProduct(t *testing.T, a *API, name string, categories ...uuid.UUID) models.Product {
	t.Helper()
	ids, _ := json.Marshal(categories)
	if categories == nil {
		ids = []byte("[]")
	}
	body := `{"name":` + jsonString(name) + `,"category_ids":` + string(ids) + `}`
	rr := call(t, a.CreateProduct, http.MethodPost, "/api/v1/products", body, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create product %q: status %d, body %s", name, rr.Code, rr.Body.String())
	}
	return decodeBody[models.Product](t, rr)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func idParam(id uuid.UUID) map[string]string {
	return map[string]string{"id": id.String()}
}
