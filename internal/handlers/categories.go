package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"catalogd/internal/catalog"
	"catalogd/internal/models"
)

type createCategoryRequest struct {
	Name        string     `json:"name" validate:"max=200"`
	ParentID    *uuid.UUID `json:"parent_id"`
	Description string     `json:"description" validate:"max=2000"`
	Order       *int       `json:"order" validate:"omitempty,min=0"`
	IsActive    *bool      `json:"is_active"`
}

type updateCategoryRequest struct {
	Name        *string    `json:"name" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Order       *int       `json:"order" validate:"omitempty,min=0"`
	IsActive    *bool      `json:"is_active"`
	ParentID    optionalID `json:"parent_id"`
}

func (req updateCategoryRequest) patch() catalog.CategoryPatch {
	return catalog.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Order:       req.Order,
		IsActive:    req.IsActive,
		SetParent:   req.ParentID.Set,
		ParentID:    req.ParentID.ID,
	}
}

type moveCategoryRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

type bulkUpdateRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000"`
	updateCategoryRequest
}

type reassignRequest struct {
	TargetID string `json:"target_id" validate:"required,uuid"`
}

// ListCategories handles GET /categories: a flat listing filtered by
// active, parent, root and q.
func (a *API) ListCategories(w http.ResponseWriter, r *http.Request) {
	active, ok := queryBool(w, r, "active", false)
	if !ok {
		return
	}
	root, ok := queryBool(w, r, "root", false)
	if !ok {
		return
	}
	filter := models.CategoryFilter{
		ActiveOnly: active,
		RootOnly:   root,
		Search:     r.URL.Query().Get("q"),
	}
	if p := r.URL.Query().Get("parent"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_id", "parent must be a UUID")
			return
		}
		filter.ParentID = &id
	}

	cats, err := a.svc.Reader.List(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// CategoryTree handles GET /categories/tree.
func (a *API) CategoryTree(w http.ResponseWriter, r *http.Request) {
	active, ok := queryBool(w, r, "active", false)
	if !ok {
		return
	}
	tree, err := a.svc.Reader.Tree(r.Context(), active)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// RootCategories handles GET /categories/roots.
func (a *API) RootCategories(w http.ResponseWriter, r *http.Request) {
	active, ok := queryBool(w, r, "active", false)
	if !ok {
		return
	}
	stats, ok := queryBool(w, r, "stats", false)
	if !ok {
		return
	}
	roots, err := a.svc.Reader.Roots(r.Context(), active, stats)
	if err != nil {
		fail(w, r, err)
		return
	}
	if roots == nil {
		roots = []models.Category{}
	}
	writeJSON(w, http.StatusOK, roots)
}

// GetCategory handles GET /categories/{id}.
func (a *API) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recent, ok := queryInt(w, r, "recent", 0)
	if !ok {
		return
	}
	detail, err := a.svc.Reader.Get(r.Context(), id, recent)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CategoryPath handles GET /categories/{id}/path: the breadcrumb from the
// root down to the category.
func (a *API) CategoryPath(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	path, err := a.svc.Reader.Breadcrumb(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

// CreateCategory handles POST /categories.
func (a *API) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	cat, err := a.svc.Mutator.Create(r.Context(), catalog.CreateCategoryInput{
		Name:        req.Name,
		ParentID:    req.ParentID,
		Description: req.Description,
		Order:       req.Order,
		IsActive:    req.IsActive,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// UpdateCategory handles PATCH /categories/{id}. Absent fields are left
// alone; "parent_id": null moves the category to the root level.
func (a *API) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	cat, err := a.svc.Mutator.Update(r.Context(), id, req.patch())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// MoveCategory handles POST /categories/{id}/move.
func (a *API) MoveCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req moveCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	cat, err := a.svc.Mutator.Move(r.Context(), id, req.ParentID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// ToggleCategory handles POST /categories/{id}/toggle.
func (a *API) ToggleCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cat, err := a.svc.Mutator.ToggleActive(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// DeleteCategory handles DELETE /categories/{id}.
func (a *API) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.svc.Mutator.Delete(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkUpdateCategories handles POST /categories/bulk-update. Item failures
// are reported in the body; the request itself still succeeds.
func (a *API) BulkUpdateCategories(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.svc.Mutator.BulkUpdate(r.Context(), req.IDs, req.patch())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReassignProducts handles POST /categories/{id}/reassign: every product in
// the category moves to target_id.
func (a *API) ReassignProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reassignRequest
	if !decode(w, r, &req) {
		return
	}
	target := uuid.MustParse(req.TargetID)
	n, err := a.svc.Mutator.ReassignProducts(r.Context(), id, target)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reassigned": n})
}
