package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"catalogd/internal/models"
	"catalogd/internal/store/memstore"
)

// fakeCache records invalidations and serves whatever was last stored.
type fakeCache struct {
	mu          sync.Mutex
	trees       map[bool][]models.Category
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{trees: make(map[bool][]models.Category)}
}

func (f *fakeCache) GetTree(_ context.Context, activeOnly bool) ([]models.Category, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trees[activeOnly]
	return t, ok
}

func (f *fakeCache) SetTree(_ context.Context, activeOnly bool, tree []models.Category) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees[activeOnly] = tree
}

func (f *fakeCache) Invalidate(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees = make(map[bool][]models.Category)
	f.invalidated++
}

func (f *fakeCache) invalidations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}

// fakeAudit collects full recompute log entries.
type fakeAudit struct {
	reasons   []string
	summaries []RecomputeSummary
}

func (f *fakeAudit) LogRecompute(_ context.Context, reason string, summary RecomputeSummary, _ time.Duration) {
	f.reasons = append(f.reasons, reason)
	f.summaries = append(f.summaries, summary)
}

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return New(st, nil, nil), st
}

func mustCreate(t *testing.T, svc *Service, name string, parent *models.Category) *models.Category {
	t.Helper()
	in := CreateCategoryInput{Name: name}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	c, err := svc.Mutator.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create(%q): %v", name, err)
	}
	return c
}

func mustProduct(t *testing.T, svc *Service, name string, active bool, cats ...*models.Category) *models.Product {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(cats))
	for _, c := range cats {
		ids = append(ids, c.ID)
	}
	p, err := svc.Mutator.CreateProduct(context.Background(), CreateProductInput{
		Name:        name,
		CategoryIDs: ids,
		IsActive:    active,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%q): %v", name, err)
	}
	return p
}

func reload(t *testing.T, st *memstore.Store, id uuid.UUID) *models.Category {
	t.Helper()
	c, err := st.FindCategoryByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindCategoryByID: %v", err)
	}
	if c == nil {
		t.Fatalf("category %s not found", id)
	}
	return c
}

func reloadProduct(t *testing.T, st *memstore.Store, id uuid.UUID) *models.Product {
	t.Helper()
	p, err := st.FindProductByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindProductByID: %v", err)
	}
	if p == nil {
		t.Fatalf("product %s not found", id)
	}
	return p
}

func assertCounts(t *testing.T, st *memstore.Store, c *models.Category, direct, subtree int) {
	t.Helper()
	got := reload(t, st, c.ID)
	if got.DirectProductCount != direct || got.SubtreeProductCount != subtree {
		t.Errorf("%s counts = (%d, %d), want (%d, %d)",
			c.Name, got.DirectProductCount, got.SubtreeProductCount, direct, subtree)
	}
}

// ptr returns a pointer to v.
func ptr[T any](v T) *T { return &v }
