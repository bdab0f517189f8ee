package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"catalogd/internal/models"
	"catalogd/internal/slug"
)

// CreateCategoryInput holds the fields of a new category. A nil Order places
// the category after its last sibling; a nil IsActive means active.
type CreateCategoryInput struct {
	Name        string
	ParentID    *uuid.UUID
	Description string
	Order       *int
	IsActive    *bool
}

// CategoryPatch is a partial update of one category. When SetParent is true
// the category moves under ParentID (nil meaning the root level).
type CategoryPatch struct {
	Name        *string
	Description *string
	Order       *int
	IsActive    *bool
	SetParent   bool
	ParentID    *uuid.UUID

	// toggleActive flips the stored flag, read under the mutation lock.
	toggleActive bool
}

func (p CategoryPatch) structural() bool {
	return p.Name != nil || p.SetParent
}

func (p CategoryPatch) empty() bool {
	return !p.structural() && p.Description == nil && p.Order == nil && p.IsActive == nil
}

// Mutator performs every write to the category tree and to product
// membership. Writes that depend on the shape of the tree hold one lock across
// validation and write, so two moves can never combine into a cycle.
type Mutator struct {
	mu       sync.Mutex
	store    CatalogStore
	resolver *Resolver
	counts   *CountSynchronizer
	cache    TreeCache
}

// NewMutator returns a Mutator. cache may be nil.
func NewMutator(store CatalogStore, resolver *Resolver, counts *CountSynchronizer, cache TreeCache) *Mutator {
	return &Mutator{
		store:    store,
		resolver: resolver,
		counts:   counts,
		cache:    cache,
	}
}

// validName trims name and derives its slug, rejecting names that are blank
// or that leave nothing to build a slug from.
func validName(name string) (string, string, error) {
	name, err := models.ValidateName(name)
	if err != nil {
		return "", "", ErrInvalidName
	}
	s := slug.Generate(name)
	if s == "" {
		return "", "", fmt.Errorf("%q has no slug characters: %w", name, ErrInvalidName)
	}
	return name, s, nil
}

// Create adds a category.
func (m *Mutator) Create(ctx context.Context, in CreateCategoryInput) (cat *models.Category, err error) {
	defer func() { structuralMutationsTotal.WithLabelValues("create", outcome(err)).Inc() }()

	name, s, err := validName(in.Name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if in.ParentID != nil {
		parent, err := m.store.FindCategoryByID(ctx, *in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("find parent: %w", err)
		}
		if parent == nil {
			return nil, ErrParentNotFound
		}
	}
	if err := m.checkUnique(ctx, uuid.Nil, name, s, in.ParentID); err != nil {
		return nil, err
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		order, err = m.store.NextSortOrder(ctx, in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("next sort order: %w", err)
		}
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	cat, err = m.store.CreateCategory(ctx, &models.Category{
		Name:        name,
		Slug:        s,
		Description: in.Description,
		ParentID:    in.ParentID,
		IsActive:    active,
		Order:       order,
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	m.invalidate(ctx)
	slog.Info("category created", "id", cat.ID, "name", cat.Name, "parent_id", cat.ParentID)
	return cat, nil
}

// checkUnique rejects a name already used by a sibling under parentID, or a
// slug owned by any other category. self is excluded from both checks.
func (m *Mutator) checkUnique(ctx context.Context, self uuid.UUID, name, s string, parentID *uuid.UUID) error {
	sibling, err := m.store.FindCategoryByNameAndParent(ctx, name, parentID)
	if err != nil {
		return fmt.Errorf("find sibling: %w", err)
	}
	if sibling != nil && sibling.ID != self {
		return ErrDuplicateSiblingName
	}
	owner, err := m.store.FindCategoryBySlug(ctx, s)
	if err != nil {
		return fmt.Errorf("find slug: %w", err)
	}
	if owner != nil && owner.ID != self {
		return ErrDuplicateSlug
	}
	return nil
}

// Rename changes a category's name and regenerates its slug.
func (m *Mutator) Rename(ctx context.Context, id uuid.UUID, name string) (*models.Category, error) {
	return m.update(ctx, "rename", id, CategoryPatch{Name: &name})
}

// Move re-parents a category. A nil parentID moves it to the root level.
// Moving a category under its current parent changes nothing.
func (m *Mutator) Move(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*models.Category, error) {
	return m.update(ctx, "move", id, CategoryPatch{SetParent: true, ParentID: parentID})
}

// Update applies a patch to one category. Name and parent changes go through
// the same checks as Rename and Move, and every check runs before anything is
// written.
func (m *Mutator) Update(ctx context.Context, id uuid.UUID, patch CategoryPatch) (*models.Category, error) {
	return m.update(ctx, "update", id, patch)
}

func (m *Mutator) update(ctx context.Context, op string, id uuid.UUID, patch CategoryPatch) (cat *models.Category, err error) {
	defer func() { structuralMutationsTotal.WithLabelValues(op, outcome(err)).Inc() }()

	var name, s string
	if patch.Name != nil {
		if name, s, err = validName(*patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.SetParent && patch.ParentID != nil && *patch.ParentID == id {
		return nil, ErrSelfParent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, ErrCategoryNotFound
	}

	moving := patch.SetParent && !c.HasParent(patch.ParentID)
	if moving {
		if err := m.checkMove(ctx, id, patch.ParentID); err != nil {
			return nil, err
		}
	}

	var fields models.CategoryFields
	targetParent := c.ParentID
	if moving {
		targetParent = patch.ParentID
		fields.ParentID = &patch.ParentID
	}
	if patch.Name != nil || moving {
		targetName, targetSlug := c.Name, c.Slug
		if patch.Name != nil {
			targetName, targetSlug = name, s
			fields.Name = &name
			fields.Slug = &s
		}
		if err := m.checkUnique(ctx, id, targetName, targetSlug, targetParent); err != nil {
			return nil, err
		}
	}
	fields.Description = patch.Description
	fields.Order = patch.Order
	fields.IsActive = patch.IsActive
	if patch.toggleActive {
		flipped := !c.IsActive
		fields.IsActive = &flipped
	}

	if !fields.IsEmpty() {
		if err := m.store.UpdateCategoryFields(ctx, id, fields); err != nil {
			return nil, fmt.Errorf("update category: %w", err)
		}
		m.invalidate(ctx)
	}

	if moving {
		slog.Info("category moved", "id", id, "from", c.ParentID, "to", patch.ParentID)
		m.counts.TriggerRecompute(ctx, "move", parentIDs(c.ParentID, patch.ParentID)...)
	}

	cat, err = m.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload category: %w", err)
	}
	if cat == nil {
		return nil, ErrCategoryNotFound
	}
	return cat, nil
}

// checkMove validates that parentID can become the parent of id: it must
// exist and must not sit inside id's subtree.
func (m *Mutator) checkMove(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	if parentID == nil {
		return nil
	}
	if *parentID == id {
		return ErrSelfParent
	}
	parent, err := m.store.FindCategoryByID(ctx, *parentID)
	if err != nil {
		return fmt.Errorf("find parent: %w", err)
	}
	if parent == nil {
		return ErrParentNotFound
	}
	ancestors, err := m.resolver.AncestorIDs(ctx, *parentID)
	if err != nil {
		return err
	}
	if slices.Contains(ancestors, id) {
		return ErrCircularReference
	}
	return nil
}

func parentIDs(ids ...*uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}

// Delete removes a category that has no children and that no product's
// membership set references, active or not. Product memberships are never
// rewritten by a delete.
func (m *Mutator) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func() { structuralMutationsTotal.WithLabelValues("delete", outcome(err)).Inc() }()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.FindCategoryByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return ErrCategoryNotFound
	}
	children, err := m.store.FindCategoriesByParent(ctx, &id)
	if err != nil {
		return fmt.Errorf("find children: %w", err)
	}
	if len(children) > 0 {
		return ErrHasChildren
	}
	live, err := m.resolver.DirectProductCount(ctx, id)
	if err != nil {
		return err
	}
	if live > 0 {
		return ErrHasProducts
	}

	members, err := m.store.FindProductsByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("find products: %w", err)
	}
	if len(members) > 0 {
		return fmt.Errorf("%d inactive or deleted products: %w", len(members), ErrHasProducts)
	}

	if err := m.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	m.invalidate(ctx)
	slog.Info("category deleted", "id", id, "name", c.Name)
	m.counts.TriggerRecompute(ctx, "delete", parentIDs(c.ParentID)...)
	return nil
}

// SetActive sets a category's active flag. Counts are not affected.
func (m *Mutator) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Category, error) {
	return m.update(ctx, "set_active", id, CategoryPatch{IsActive: &active})
}

// ToggleActive flips a category's active flag.
func (m *Mutator) ToggleActive(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return m.update(ctx, "toggle_active", id, CategoryPatch{toggleActive: true})
}

// BulkUpdateResult reports a bulk field update item by item.
type BulkUpdateResult struct {
	Results []BulkItemResult `json:"results"`
	Updated int              `json:"updated"`
	Errors  int              `json:"errors"`
}

// BulkUpdate applies the same non-structural patch to every id. Names and
// parents cannot be bulk updated. Each id succeeds or fails on its own.
func (m *Mutator) BulkUpdate(ctx context.Context, ids []string, patch CategoryPatch) (*BulkUpdateResult, error) {
	if patch.structural() {
		return nil, fmt.Errorf("name and parent: %w", ErrInvalidBulkField)
	}
	if patch.empty() {
		return nil, fmt.Errorf("no fields given: %w", ErrInvalidBulkField)
	}
	fields := models.CategoryFields{
		Description: patch.Description,
		Order:       patch.Order,
		IsActive:    patch.IsActive,
	}

	res := &BulkUpdateResult{Results: make([]BulkItemResult, 0, len(ids))}
	fail := func(raw string, err error) {
		res.Errors++
		res.Results = append(res.Results, BulkItemResult{ID: raw, Status: StatusError, Error: err.Error()})
	}
	for _, raw := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			fail(raw, ErrInvalidID)
			continue
		}
		c, err := m.store.FindCategoryByID(ctx, id)
		if err != nil {
			fail(raw, err)
			continue
		}
		if c == nil {
			fail(raw, ErrCategoryNotFound)
			continue
		}
		if err := m.store.UpdateCategoryFields(ctx, id, fields); err != nil {
			fail(raw, err)
			continue
		}
		res.Updated++
		res.Results = append(res.Results, BulkItemResult{ID: raw, Status: StatusUpdated})
	}
	if res.Updated > 0 {
		m.invalidate(ctx)
	}
	return res, nil
}

func (m *Mutator) invalidate(ctx context.Context) {
	if m.cache != nil {
		m.cache.Invalidate(ctx)
	}
}
