package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"catalogd/internal/catalog"
)

type createProductRequest struct {
	Name        string      `json:"name" validate:"max=300"`
	CategoryIDs []uuid.UUID `json:"category_ids" validate:"max=100"`
	CategoryID  *uuid.UUID  `json:"category_id"`
	IsActive    *bool       `json:"is_active"`
}

type productCategoriesRequest struct {
	CategoryIDs []uuid.UUID `json:"category_ids" validate:"max=100"`
	CategoryID  *uuid.UUID  `json:"category_id"`
}

type productActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type bulkLinkRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,max=1000"`
}

// linkResponse tells whether a link or unlink changed anything.
type linkResponse struct {
	Changed bool `json:"changed"`
}

// CreateProduct handles POST /products. category_id is the single category
// older clients send; it is merged into category_ids.
func (a *API) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decode(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p, err := a.svc.Mutator.CreateProduct(r.Context(), catalog.CreateProductInput{
		Name:             req.Name,
		CategoryIDs:      req.CategoryIDs,
		LegacyCategoryID: req.CategoryID,
		IsActive:         active,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SetProductCategories handles PUT /products/{id}/categories.
func (a *API) SetProductCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req productCategoriesRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := a.svc.Mutator.SetProductCategories(r.Context(), id, req.CategoryIDs, req.CategoryID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SetProductActive handles PATCH /products/{id}.
func (a *API) SetProductActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req productActiveRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := a.svc.Mutator.SetProductActive(r.Context(), id, *req.IsActive)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /products/{id}. The product is soft-deleted.
func (a *API) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.svc.Mutator.DeleteProduct(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkProduct handles POST /categories/{id}/products/{productID}.
func (a *API) LinkProduct(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	changed, err := a.svc.Mutator.LinkProduct(r.Context(), productID, categoryID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{Changed: changed})
}

// UnlinkProduct handles DELETE /categories/{id}/products/{productID}.
func (a *API) UnlinkProduct(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	changed, err := a.svc.Mutator.UnlinkProduct(r.Context(), productID, categoryID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{Changed: changed})
}

// BulkLinkProducts handles POST /categories/{id}/products/bulk.
func (a *API) BulkLinkProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req bulkLinkRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.svc.Mutator.BulkLinkProducts(r.Context(), categoryID, req.ProductIDs)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
