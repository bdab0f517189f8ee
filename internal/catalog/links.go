package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"catalogd/internal/models"
)

// Per-item statuses reported by bulk operations.
const (
	StatusLinked        = "linked"
	StatusAlreadyLinked = "already_linked"
	StatusUpdated       = "updated"
	StatusError         = "error"
)

// BulkItemResult is the outcome for one id of a bulk operation.
type BulkItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BulkLinkResult reports a bulk link item by item.
type BulkLinkResult struct {
	Results       []BulkItemResult `json:"results"`
	Linked        int              `json:"linked"`
	AlreadyLinked int              `json:"already_linked"`
	Errors        int              `json:"errors"`
}

// writeMembership normalizes and stores a product's membership fields.
func (m *Mutator) writeMembership(ctx context.Context, productID uuid.UUID, ids []uuid.UUID, legacy *uuid.UUID) error {
	ids, legacy = models.NormalizeMembership(ids, legacy)
	if err := m.store.UpdateProductCategories(ctx, productID, ids, legacy); err != nil {
		return fmt.Errorf("update product categories: %w", err)
	}
	return nil
}

// removeMembership drops categoryID from p, clearing the legacy field first
// when it points at the removed category so normalization does not add it
// back.
func (m *Mutator) removeMembership(ctx context.Context, p *models.Product, categoryID uuid.UUID) error {
	ids := slices.DeleteFunc(slices.Clone(p.CategoryIDs), func(id uuid.UUID) bool { return id == categoryID })
	legacy := p.LegacyCategoryID
	if legacy != nil && *legacy == categoryID {
		legacy = nil
	}
	return m.writeMembership(ctx, p.ID, ids, legacy)
}

func (m *Mutator) findLinkTargets(ctx context.Context, productID, categoryID uuid.UUID) (*models.Product, error) {
	p, err := m.store.FindProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrProductNotFound
	}
	c, err := m.store.FindCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, ErrCategoryNotFound
	}
	return p, nil
}

// LinkProduct adds categoryID to the product's categories. It reports
// whether anything changed; linking an already linked pair is not an error.
func (m *Mutator) LinkProduct(ctx context.Context, productID, categoryID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.findLinkTargets(ctx, productID, categoryID)
	if err != nil {
		return false, err
	}
	if p.InCategory(categoryID) {
		return false, nil
	}
	if err := m.writeMembership(ctx, p.ID, append(p.CategoryIDs, categoryID), p.LegacyCategoryID); err != nil {
		return false, err
	}
	m.counts.TriggerRecompute(ctx, "link", categoryID)
	return true, nil
}

// UnlinkProduct removes categoryID from the product's categories. It reports
// whether anything changed; unlinking a pair that is not linked is not an
// error.
func (m *Mutator) UnlinkProduct(ctx context.Context, productID, categoryID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.findLinkTargets(ctx, productID, categoryID)
	if err != nil {
		return false, err
	}
	if !p.InCategory(categoryID) {
		return false, nil
	}
	if err := m.removeMembership(ctx, p, categoryID); err != nil {
		return false, err
	}
	m.counts.TriggerRecompute(ctx, "unlink", categoryID)
	return true, nil
}

// BulkLinkProducts links every product id to categoryID. Malformed ids and
// missing products are reported per item; the category is recomputed once
// at the end.
func (m *Mutator) BulkLinkProducts(ctx context.Context, categoryID uuid.UUID, productIDs []string) (*BulkLinkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.FindCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, ErrCategoryNotFound
	}

	res := &BulkLinkResult{Results: make([]BulkItemResult, 0, len(productIDs))}
	add := func(raw, status string, err error) {
		item := BulkItemResult{ID: raw, Status: status}
		switch status {
		case StatusLinked:
			res.Linked++
		case StatusAlreadyLinked:
			res.AlreadyLinked++
		default:
			res.Errors++
			item.Error = err.Error()
		}
		res.Results = append(res.Results, item)
	}

	for _, raw := range productIDs {
		if err := ctx.Err(); err != nil {
			break
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			add(raw, StatusError, ErrInvalidID)
			continue
		}
		p, err := m.store.FindProductByID(ctx, id)
		if err != nil {
			add(raw, StatusError, err)
			continue
		}
		if p == nil || p.DeletedAt != nil {
			add(raw, StatusError, ErrProductNotFound)
			continue
		}
		if p.InCategory(categoryID) {
			add(raw, StatusAlreadyLinked, nil)
			continue
		}
		if err := m.writeMembership(ctx, p.ID, append(p.CategoryIDs, categoryID), p.LegacyCategoryID); err != nil {
			add(raw, StatusError, err)
			continue
		}
		add(raw, StatusLinked, nil)
	}

	if res.Linked > 0 {
		m.counts.TriggerRecompute(ctx, "bulk_link", categoryID)
	}
	slog.Info("products bulk linked",
		"category_id", categoryID,
		"linked", res.Linked,
		"already_linked", res.AlreadyLinked,
		"errors", res.Errors,
	)
	return res, ctx.Err()
}

// ReassignProducts moves every product linked to sourceID over to targetID,
// replacing the source link rather than adding a second one. It returns the
// number of products rewritten.
func (m *Mutator) ReassignProducts(ctx context.Context, sourceID, targetID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []uuid.UUID{sourceID, targetID} {
		c, err := m.store.FindCategoryByID(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("find category: %w", err)
		}
		if c == nil {
			return 0, fmt.Errorf("category %s: %w", id, ErrCategoryNotFound)
		}
	}
	if sourceID == targetID {
		return 0, nil
	}

	products, err := m.store.FindProductsByCategory(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("find products: %w", err)
	}

	moved := 0
	for _, p := range products {
		ids := models.ReplaceCategory(p.CategoryIDs, sourceID, targetID)
		legacy := p.LegacyCategoryID
		if legacy != nil && *legacy == sourceID {
			legacy = &targetID
		}
		if err := m.writeMembership(ctx, p.ID, ids, legacy); err != nil {
			m.counts.TriggerRecompute(ctx, "reassign", sourceID, targetID)
			return moved, err
		}
		moved++
	}

	m.counts.TriggerRecompute(ctx, "reassign", sourceID, targetID)
	slog.Info("products reassigned", "from", sourceID, "to", targetID, "count", moved)
	return moved, nil
}
