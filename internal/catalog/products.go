package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"catalogd/internal/models"
)

// CreateProductInput holds the membership-relevant fields of a new product.
type CreateProductInput struct {
	Name             string
	CategoryIDs      []uuid.UUID
	LegacyCategoryID *uuid.UUID
	IsActive         bool
}

// checkCategories verifies that every id names an existing category.
func (m *Mutator) checkCategories(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		c, err := m.store.FindCategoryByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find category: %w", err)
		}
		if c == nil {
			return fmt.Errorf("category %s: %w", id, ErrCategoryNotFound)
		}
	}
	return nil
}

// CreateProduct stores a product with normalized membership and refreshes
// the counts of its categories.
func (m *Mutator) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("product name: %w", ErrInvalidName)
	}
	ids, legacy := models.NormalizeMembership(in.CategoryIDs, in.LegacyCategoryID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCategories(ctx, ids); err != nil {
		return nil, err
	}
	p, err := m.store.CreateProduct(ctx, &models.Product{
		Name:             name,
		CategoryIDs:      ids,
		LegacyCategoryID: legacy,
		IsActive:         in.IsActive,
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if p.Countable() {
		m.counts.TriggerRecompute(ctx, "product_create", p.CategoryIDs...)
	}
	return p, nil
}

// SetProductCategories replaces a product's categories. A nil legacy keeps
// the current legacy category only while it stays in the new set. Both the
// old and the new categories are recomputed so vacated categories drop the
// product.
func (m *Mutator) SetProductCategories(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID, legacy *uuid.UUID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.FindProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrProductNotFound
	}
	if legacy == nil && p.LegacyCategoryID != nil && slices.Contains(categoryIDs, *p.LegacyCategoryID) {
		legacy = p.LegacyCategoryID
	}
	ids, legacy := models.NormalizeMembership(categoryIDs, legacy)
	if err := m.checkCategories(ctx, ids); err != nil {
		return nil, err
	}
	if err := m.store.UpdateProductCategories(ctx, productID, ids, legacy); err != nil {
		return nil, fmt.Errorf("update product categories: %w", err)
	}

	if p.Countable() && !slices.Equal(p.CategoryIDs, ids) {
		m.counts.TriggerRecompute(ctx, "product_update", models.UnionIDs(p.CategoryIDs, ids)...)
	}
	p.CategoryIDs, p.LegacyCategoryID = ids, legacy
	return p, nil
}

// SetProductActive activates or deactivates a product. Its categories are
// recomputed when the flag changes.
func (m *Mutator) SetProductActive(ctx context.Context, productID uuid.UUID, active bool) (*models.Product, error) {
	p, err := m.store.FindProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrProductNotFound
	}
	if p.IsActive == active {
		return p, nil
	}
	if err := m.store.SetProductActive(ctx, productID, active); err != nil {
		return nil, fmt.Errorf("set product active: %w", err)
	}
	p.IsActive = active
	m.counts.TriggerRecompute(ctx, "product_update", p.CategoryIDs...)
	return p, nil
}

// DeleteProduct soft-deletes a product and recomputes its categories.
// Deleting an already deleted product is a no-op.
func (m *Mutator) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	p, err := m.store.FindProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("find product: %w", err)
	}
	if p == nil {
		return ErrProductNotFound
	}
	if p.DeletedAt != nil {
		return nil
	}
	if err := m.store.SoftDeleteProduct(ctx, productID, time.Now()); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	slog.Info("product deleted", "id", productID, "categories", len(p.CategoryIDs))
	if p.IsActive {
		m.counts.TriggerRecompute(ctx, "product_delete", p.CategoryIDs...)
	}
	return nil
}
