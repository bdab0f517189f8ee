// Package memstore is an in-memory catalog store used by tests and the
// memory store driver. Records are copied on the way in and out so callers
// never share state with the store.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalogd/internal/models"
)

// Store holds categories and products keyed by id.
type Store struct {
	mu         sync.RWMutex
	categories map[uuid.UUID]*models.Category
	products   map[uuid.UUID]*models.Product
	now        func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		categories: make(map[uuid.UUID]*models.Category),
		products:   make(map[uuid.UUID]*models.Product),
		now:        time.Now,
	}
}

func cloneCategory(c *models.Category) *models.Category {
	out := *c
	out.Children = nil
	out.ChildCount = nil
	out.LiveProductCount = nil
	out.Depth = 0
	if c.ParentID != nil {
		p := *c.ParentID
		out.ParentID = &p
	}
	if c.CountLastComputedAt != nil {
		t := *c.CountLastComputedAt
		out.CountLastComputedAt = &t
	}
	return &out
}

func cloneProduct(p *models.Product) *models.Product {
	out := *p
	out.CategoryIDs = slices.Clone(p.CategoryIDs)
	if p.LegacyCategoryID != nil {
		l := *p.LegacyCategoryID
		out.LegacyCategoryID = &l
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

func sorted(items []models.Category) []models.Category {
	models.SortCategories(items)
	return items
}

// FindCategoryByID returns the category or nil.
func (s *Store) FindCategoryByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return cloneCategory(c), nil
}

// FindCategoryBySlug returns the category owning slug or nil.
func (s *Store) FindCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return cloneCategory(c), nil
		}
	}
	return nil, nil
}

// FindCategoriesByParent returns the children of parentID, or the roots.
func (s *Store) FindCategoriesByParent(_ context.Context, parentID *uuid.UUID) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Category
	for _, c := range s.categories {
		if models.SameParent(c.ParentID, parentID) {
			out = append(out, *cloneCategory(c))
		}
	}
	return sorted(out), nil
}

// FindCategoryByNameAndParent matches name case-insensitively among siblings.
func (s *Store) FindCategoryByNameAndParent(_ context.Context, name string, parentID *uuid.UUID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if models.SameParent(c.ParentID, parentID) && models.SameName(c.Name, name) {
			return cloneCategory(c), nil
		}
	}
	return nil, nil
}

// ListCategories returns a flat listing narrowed by filter.
func (s *Store) ListCategories(_ context.Context, filter models.CategoryFilter) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []models.Category
	for _, c := range s.categories {
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		if filter.RootOnly {
			if c.ParentID != nil {
				continue
			}
		} else if filter.ParentID != nil && !models.SameParent(c.ParentID, filter.ParentID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		out = append(out, *cloneCategory(c))
	}
	return sorted(out), nil
}

// CreateCategory stores c, assigning an id and timestamps when missing.
func (s *Store) CreateCategory(_ context.Context, c *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneCategory(c)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := s.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.categories[stored.ID] = stored
	return cloneCategory(stored), nil
}

// UpdateCategoryFields applies the set fields. Missing ids are ignored.
func (s *Store) UpdateCategoryFields(_ context.Context, id uuid.UUID, fields models.CategoryFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil
	}
	fields.Apply(c)
	if c.ParentID != nil {
		p := *c.ParentID
		c.ParentID = &p
	}
	c.UpdatedAt = s.now()
	return nil
}

// UpdateCategoryCounts stores recomputed counters.
func (s *Store) UpdateCategoryCounts(_ context.Context, id uuid.UUID, counts models.CountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil
	}
	at := counts.ComputedAt
	c.DirectProductCount = counts.Direct
	c.SubtreeProductCount = counts.Subtree
	c.CountLastComputedAt = &at
	return nil
}

// DeleteCategory removes the category.
func (s *Store) DeleteCategory(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
	return nil
}

// NextSortOrder returns one past the highest sibling order.
func (s *Store) NextSortOrder(_ context.Context, parentID *uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := 0
	for _, c := range s.categories {
		if models.SameParent(c.ParentID, parentID) && c.Order >= next {
			next = c.Order + 1
		}
	}
	return next, nil
}

// CountActiveProductsByCategory counts countable members of categoryID.
func (s *Store) CountActiveProductsByCategory(_ context.Context, categoryID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.products {
		if p.Countable() && p.InCategory(categoryID) {
			n++
		}
	}
	return n, nil
}

// CountActiveProductsGrouped counts countable members per category.
func (s *Store) CountActiveProductsGrouped(_ context.Context) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]int)
	for _, p := range s.products {
		if !p.Countable() {
			continue
		}
		for _, id := range p.CategoryIDs {
			out[id]++
		}
	}
	return out, nil
}

// FindProductByID returns the product or nil. Soft-deleted products are
// still returned.
func (s *Store) FindProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

// FindProductsByCategory returns every member of categoryID, oldest first.
func (s *Store) FindProductsByCategory(_ context.Context, categoryID uuid.UUID) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for _, p := range s.products {
		if p.InCategory(categoryID) {
			out = append(out, *cloneProduct(p))
		}
	}
	slices.SortFunc(out, func(a, b models.Product) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// RecentProductsByCategory returns up to limit countable members, newest first.
func (s *Store) RecentProductsByCategory(_ context.Context, categoryID uuid.UUID, limit int) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for _, p := range s.products {
		if p.Countable() && p.InCategory(categoryID) {
			out = append(out, *cloneProduct(p))
		}
	}
	slices.SortFunc(out, func(a, b models.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateProduct stores p, assigning an id and timestamps when missing.
func (s *Store) CreateProduct(_ context.Context, p *models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneProduct(p)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.products[stored.ID] = stored
	return cloneProduct(stored), nil
}

// UpdateProductCategories replaces the membership fields as given.
func (s *Store) UpdateProductCategories(_ context.Context, id uuid.UUID, categoryIDs []uuid.UUID, legacy *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	p.CategoryIDs = slices.Clone(categoryIDs)
	p.LegacyCategoryID = nil
	if legacy != nil {
		l := *legacy
		p.LegacyCategoryID = &l
	}
	p.UpdatedAt = s.now()
	return nil
}

// SetProductActive flips the product's active flag.
func (s *Store) SetProductActive(_ context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.IsActive = active
		p.UpdatedAt = s.now()
	}
	return nil
}

// SoftDeleteProduct marks the product deleted at the given time. A product
// already deleted keeps its first timestamp.
func (s *Store) SoftDeleteProduct(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok && p.DeletedAt == nil {
		p.DeletedAt = &at
		p.UpdatedAt = at
	}
	return nil
}

// PutCategory stores c verbatim, bypassing every check. Tests use it to
// build corrupted trees.
func (s *Store) PutCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = cloneCategory(&c)
}

// Len returns the number of categories and products held.
func (s *Store) Len() (categories, products int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories), len(s.products)
}
