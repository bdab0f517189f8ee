package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"catalogd/internal/catalog"
	"catalogd/internal/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{catalog.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
		{catalog.ErrInvalidID, http.StatusBadRequest, "invalid_id"},
		{catalog.ErrInvalidBulkField, http.StatusBadRequest, "invalid_bulk_field"},
		{catalog.ErrSelfParent, http.StatusBadRequest, "self_parent"},
		{catalog.ErrCircularReference, http.StatusBadRequest, "circular_reference"},
		{catalog.ErrParentNotFound, http.StatusUnprocessableEntity, "parent_not_found"},
		{catalog.ErrDuplicateSiblingName, http.StatusConflict, "duplicate_sibling_name"},
		{catalog.ErrDuplicateSlug, http.StatusConflict, "duplicate_slug"},
		{catalog.ErrHasChildren, http.StatusConflict, "has_children"},
		{catalog.ErrHasProducts, http.StatusConflict, "has_products"},
		{catalog.ErrCycleDetected, http.StatusConflict, "cycle_detected"},
		{catalog.ErrCategoryNotFound, http.StatusNotFound, "category_not_found"},
		{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		{fmt.Errorf("move: %w", catalog.ErrCircularReference), http.StatusBadRequest, "circular_reference"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code := statusFor(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("got %d %q, want %d %q", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestCreateCategory(t *testing.T) {
	a, _ := testAPI(t)
	root := createCategory(t, a, "Engine Parts", nil)

	if root.Slug != "engine-parts" || !root.IsActive || root.ParentID != nil {
		t.Errorf("created = %+v", root)
	}

	child := createCategory(t, a, "Pistons", &root.ID)
	if child.ParentID == nil || *child.ParentID != root.ID {
		t.Errorf("child parent = %v, want %s", child.ParentID, root.ID)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"blank name", `{"name":"   "}`, http.StatusBadRequest, "invalid_name"},
		{"duplicate sibling", `{"name":"pistons","parent_id":"` + root.ID.String() + `"}`, http.StatusConflict, "duplicate_sibling_name"},
		{"duplicate slug", `{"name":"Engine  Parts"}`, http.StatusConflict, "duplicate_slug"},
		{"missing parent", `{"name":"Valves","parent_id":"` + uuid.NewString() + `"}`, http.StatusUnprocessableEntity, "parent_not_found"},
		{"malformed parent", `{"name":"Valves","parent_id":"nope"}`, http.StatusBadRequest, "invalid_body"},
		{"unknown field", `{"name":"Valves","colour":"red"}`, http.StatusBadRequest, "invalid_body"},
		{"empty body", ``, http.StatusBadRequest, "invalid_body"},
		{"name too long", `{"name":"` + strings.Repeat("a", 201) + `"}`, http.StatusBadRequest, "validation"},
		{"negative order", `{"name":"Valves","order":-1}`, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := call(t, a.CreateCategory, http.MethodPost, "/api/v1/categories", tt.body, nil)
			expectError(t, rr, tt.status, tt.code)
		})
	}
}

func TestCreateCategoryValidationDetails(t *testing.T) {
	a, _ := testAPI(t)

	rr := call(t, a.CreateCategory, http.MethodPost, "/api/v1/categories",
		`{"name":"`+strings.Repeat("a", 201)+`"}`, nil)
	body := decodeBody[errorResponse](t, rr)
	if len(body.Details) != 1 || body.Details[0] != "name must be at most 200" {
		t.Errorf("details = %v, want the JSON field name in the message", body.Details)
	}
}

func TestUpdateCategory(t *testing.T) {
	a, _ := testAPI(t)
	root := createCategory(t, a, "Engine Parts", nil)
	child := createCategory(t, a, "Pistons", &root.ID)
	grandchild := createCategory(t, a, "Rings", &child.ID)

	// Absent parent_id leaves the parent alone.
	rr := call(t, a.UpdateCategory, http.MethodPatch, "/", `{"description":"Forged and cast"}`, idParam(child.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rr.Code, rr.Body.String())
	}
	got := decodeBody[models.Category](t, rr)
	if got.Description != "Forged and cast" || got.ParentID == nil || *got.ParentID != root.ID {
		t.Errorf("after description update = %+v", got)
	}

	// Explicit null moves to the root level.
	rr = call(t, a.UpdateCategory, http.MethodPatch, "/", `{"parent_id":null,"name":"Pistons & Rings"}`, idParam(child.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("move to root: status %d, body %s", rr.Code, rr.Body.String())
	}
	got = decodeBody[models.Category](t, rr)
	if got.ParentID != nil || got.Slug != "pistons-rings" {
		t.Errorf("after move to root = %+v", got)
	}

	rr = call(t, a.UpdateCategory, http.MethodPatch, "/", `{"parent_id":"`+grandchild.ID.String()+`"}`, idParam(child.ID))
	expectError(t, rr, http.StatusBadRequest, "circular_reference")

	rr = call(t, a.UpdateCategory, http.MethodPatch, "/", `{"parent_id":"`+child.ID.String()+`"}`, idParam(child.ID))
	expectError(t, rr, http.StatusBadRequest, "self_parent")

	rr = call(t, a.UpdateCategory, http.MethodPatch, "/", `{"order":2}`, idParam(uuid.New()))
	expectError(t, rr, http.StatusNotFound, "category_not_found")

	rr = call(t, a.UpdateCategory, http.MethodPatch, "/", `{"order":2}`, map[string]string{"id": "42"})
	expectError(t, rr, http.StatusBadRequest, "invalid_id")
}

func TestMoveAndToggleCategory(t *testing.T) {
	a, st := testAPI(t)
	engine := createCategory(t, a, "Engine Parts", nil)
	brakes := createCategory(t, a, "Brakes", nil)
	pads := createCategory(t, a, "Pads", &engine.ID)
	createProduct(t, a, "Ceramic pad", pads.ID)

	rr := call(t, a.MoveCategory, http.MethodPost, "/", `{"parent_id":"`+brakes.ID.String()+`"}`, idParam(pads.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("move: status %d, body %s", rr.Code, rr.Body.String())
	}
	for _, tc := range []struct {
		id   uuid.UUID
		want int
	}{{engine.ID, 0}, {brakes.ID, 1}} {
		c, _ := st.FindCategoryByID(t.Context(), tc.id)
		if c.SubtreeProductCount != tc.want {
			t.Errorf("%s subtree = %d, want %d", c.Name, c.SubtreeProductCount, tc.want)
		}
	}

	rr = call(t, a.ToggleCategory, http.MethodPost, "/", "", idParam(brakes.ID))
	if got := decodeBody[models.Category](t, rr); got.IsActive {
		t.Error("toggle did not deactivate")
	}
	rr = call(t, a.ToggleCategory, http.MethodPost, "/", "", idParam(brakes.ID))
	if got := decodeBody[models.Category](t, rr); !got.IsActive {
		t.Error("second toggle did not reactivate")
	}
}

func TestDeleteCategory(t *testing.T) {
	a, _ := testAPI(t)
	root := createCategory(t, a, "Engine Parts", nil)
	child := createCategory(t, a, "Pistons", &root.ID)
	createProduct(t, a, "Forged piston", child.ID)

	rr := call(t, a.DeleteCategory, http.MethodDelete, "/", "", idParam(root.ID))
	expectError(t, rr, http.StatusConflict, "has_children")

	rr = call(t, a.DeleteCategory, http.MethodDelete, "/", "", idParam(child.ID))
	expectError(t, rr, http.StatusConflict, "has_products")

	empty := createCategory(t, a, "Valves", &root.ID)
	rr = call(t, a.DeleteCategory, http.MethodDelete, "/", "", idParam(empty.ID))
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, want 204", rr.Code)
	}
	rr = call(t, a.DeleteCategory, http.MethodDelete, "/", "", idParam(empty.ID))
	expectError(t, rr, http.StatusNotFound, "category_not_found")
}

func TestReadEndpoints(t *testing.T) {
	a, _ := testAPI(t)
	root := createCategory(t, a, "Engine Parts", nil)
	child := createCategory(t, a, "Pistons", &root.ID)
	createCategory(t, a, "Brakes", nil)
	createProduct(t, a, "Forged piston", child.ID)
	createProduct(t, a, "Cast piston", child.ID)

	t.Run("list", func(t *testing.T) {
		rr := call(t, a.ListCategories, http.MethodGet, "/api/v1/categories?parent="+root.ID.String(), "", nil)
		got := decodeBody[[]models.Category](t, rr)
		if len(got) != 1 || got[0].ID != child.ID {
			t.Errorf("children = %v", got)
		}

		rr = call(t, a.ListCategories, http.MethodGet, "/api/v1/categories?q=zzz", "", nil)
		if strings.TrimSpace(rr.Body.String()) != "[]" {
			t.Errorf("empty listing = %s, want []", rr.Body.String())
		}

		rr = call(t, a.ListCategories, http.MethodGet, "/api/v1/categories?active=maybe", "", nil)
		expectError(t, rr, http.StatusBadRequest, "invalid_query")

		rr = call(t, a.ListCategories, http.MethodGet, "/api/v1/categories?parent=nope", "", nil)
		expectError(t, rr, http.StatusBadRequest, "invalid_id")
	})

	t.Run("tree", func(t *testing.T) {
		rr := call(t, a.CategoryTree, http.MethodGet, "/api/v1/categories/tree", "", nil)
		tree := decodeBody[[]models.Category](t, rr)
		if len(tree) != 2 {
			t.Fatalf("roots in tree = %d, want 2", len(tree))
		}
		engine := tree[0]
		if engine.ID != root.ID {
			engine = tree[1]
		}
		if len(engine.Children) != 1 || engine.Children[0].DirectProductCount != 2 || engine.SubtreeProductCount != 2 {
			t.Errorf("engine node = %+v", engine)
		}
	})

	t.Run("roots with stats", func(t *testing.T) {
		rr := call(t, a.RootCategories, http.MethodGet, "/api/v1/categories/roots?stats=true", "", nil)
		roots := decodeBody[[]models.Category](t, rr)
		for _, r := range roots {
			if r.ChildCount == nil || r.LiveProductCount == nil {
				t.Errorf("%s has no stats", r.Name)
			}
			if r.ID == root.ID && *r.ChildCount != 1 {
				t.Errorf("engine child count = %d, want 1", *r.ChildCount)
			}
		}
	})

	t.Run("get", func(t *testing.T) {
		rr := call(t, a.GetCategory, http.MethodGet, "/?recent=1", "", idParam(child.ID))
		detail := decodeBody[catalog.CategoryDetail](t, rr)
		if detail.LiveProductCount != 2 || len(detail.RecentProducts) != 1 {
			t.Errorf("detail = live %d, recent %d; want 2 and 1", detail.LiveProductCount, len(detail.RecentProducts))
		}

		rr = call(t, a.GetCategory, http.MethodGet, "/?recent=-3", "", idParam(child.ID))
		expectError(t, rr, http.StatusBadRequest, "invalid_query")

		rr = call(t, a.GetCategory, http.MethodGet, "/", "", idParam(uuid.New()))
		expectError(t, rr, http.StatusNotFound, "category_not_found")
	})

	t.Run("path", func(t *testing.T) {
		rr := call(t, a.CategoryPath, http.MethodGet, "/", "", idParam(child.ID))
		path := decodeBody[[]models.Category](t, rr)
		if len(path) != 2 || path[0].ID != root.ID || path[1].ID != child.ID || path[1].Depth != 1 {
			t.Errorf("path = %v", path)
		}
	})
}

func TestBulkUpdateCategories(t *testing.T) {
	a, _ := testAPI(t)
	c1 := createCategory(t, a, "Pistons", nil)
	c2 := createCategory(t, a, "Valves", nil)

	body := fmt.Sprintf(`{"ids":[%q,"bad",%q],"is_active":false}`, c1.ID, c2.ID)
	rr := call(t, a.BulkUpdateCategories, http.MethodPost, "/", body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("bulk update: status %d, body %s", rr.Code, rr.Body.String())
	}
	res := decodeBody[catalog.BulkUpdateResult](t, rr)
	if res.Updated != 2 || res.Errors != 1 || res.Results[1].Status != catalog.StatusError {
		t.Errorf("result = %+v", res)
	}

	rr = call(t, a.BulkUpdateCategories, http.MethodPost, "/", fmt.Sprintf(`{"ids":[%q],"name":"x"}`, c1.ID), nil)
	expectError(t, rr, http.StatusBadRequest, "invalid_bulk_field")

	rr = call(t, a.BulkUpdateCategories, http.MethodPost, "/", fmt.Sprintf(`{"ids":[%q],"parent_id":null}`, c1.ID), nil)
	expectError(t, rr, http.StatusBadRequest, "invalid_bulk_field")

	rr = call(t, a.BulkUpdateCategories, http.MethodPost, "/", `{"ids":[],"order":1}`, nil)
	expectError(t, rr, http.StatusBadRequest, "validation")
}

func TestReassignProductsHandler(t *testing.T) {
	a, _ := testAPI(t)
	src := createCategory(t, a, "Old Pistons", nil)
	dst := createCategory(t, a, "Pistons", nil)
	createProduct(t, a, "P1", src.ID)
	createProduct(t, a, "P2", src.ID)

	rr := call(t, a.ReassignProducts, http.MethodPost, "/", `{"target_id":"`+dst.ID.String()+`"}`, idParam(src.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("reassign: status %d, body %s", rr.Code, rr.Body.String())
	}
	if got := decodeBody[map[string]int](t, rr); got["reassigned"] != 2 {
		t.Errorf("reassigned = %d, want 2", got["reassigned"])
	}

	rr = call(t, a.ReassignProducts, http.MethodPost, "/", `{"target_id":"nope"}`, idParam(src.ID))
	expectError(t, rr, http.StatusBadRequest, "validation")

	rr = call(t, a.ReassignProducts, http.MethodPost, "/", `{"target_id":"`+uuid.NewString()+`"}`, idParam(src.ID))
	expectError(t, rr, http.StatusNotFound, "category_not_found")
}
