package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"catalogd/internal/models"
)

// CatalogStore is the persistence the engine runs on. Finders return
// (nil, nil) when the record does not exist. Implementations do not enforce
// tree invariants; the engine validates before every structural write.
type CatalogStore interface {
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	// FindCategoriesByParent returns the direct children of parentID, or the
	// roots when parentID is nil, sorted by (order, name).
	FindCategoriesByParent(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error)
	// FindCategoryByNameAndParent matches name case-insensitively among the
	// children of parentID.
	FindCategoryByNameAndParent(ctx context.Context, name string, parentID *uuid.UUID) (*models.Category, error)
	ListCategories(ctx context.Context, filter models.CategoryFilter) ([]models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error)
	UpdateCategoryFields(ctx context.Context, id uuid.UUID, fields models.CategoryFields) error
	UpdateCategoryCounts(ctx context.Context, id uuid.UUID, counts models.CountUpdate) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	NextSortOrder(ctx context.Context, parentID *uuid.UUID) (int, error)

	// CountActiveProductsByCategory counts active, non-deleted products whose
	// membership set contains categoryID.
	CountActiveProductsByCategory(ctx context.Context, categoryID uuid.UUID) (int, error)
	// CountActiveProductsGrouped returns the same count for every category
	// that has at least one such product.
	CountActiveProductsGrouped(ctx context.Context) (map[uuid.UUID]int, error)

	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// FindProductsByCategory returns every product (active or not) whose
	// membership set contains categoryID.
	FindProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error)
	// RecentProductsByCategory returns up to limit active products of the
	// category, newest first.
	RecentProductsByCategory(ctx context.Context, categoryID uuid.UUID, limit int) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	// UpdateProductCategories replaces the membership set and legacy field.
	// Values are stored as given; callers normalize first.
	UpdateProductCategories(ctx context.Context, id uuid.UUID, categoryIDs []uuid.UUID, legacy *uuid.UUID) error
	SetProductActive(ctx context.Context, id uuid.UUID, active bool) error
	SoftDeleteProduct(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TreeCache stores rendered tree views. Implementations are best-effort:
// misses and write failures are not reported to the caller.
type TreeCache interface {
	GetTree(ctx context.Context, activeOnly bool) ([]models.Category, bool)
	SetTree(ctx context.Context, activeOnly bool, tree []models.Category)
	Invalidate(ctx context.Context)
}

// generationCache counts invalidations so that a tree built from a read
// that overlapped a write is never stored.
type generationCache struct {
	TreeCache
	gen atomic.Uint64
}

func (c *generationCache) Invalidate(ctx context.Context) {
	c.gen.Add(1)
	c.TreeCache.Invalidate(ctx)
}

// setIfCurrent stores tree only if no invalidation happened since gen was
// loaded. An invalidation landing during the store clears it again.
func (c *generationCache) setIfCurrent(ctx context.Context, activeOnly bool, tree []models.Category, gen uint64) bool {
	if c.gen.Load() != gen {
		return false
	}
	c.TreeCache.SetTree(ctx, activeOnly, tree)
	if c.gen.Load() != gen {
		c.TreeCache.Invalidate(ctx)
		return false
	}
	return true
}

// RecomputeLogger records completed full recomputations.
type RecomputeLogger interface {
	LogRecompute(ctx context.Context, reason string, summary RecomputeSummary, took time.Duration)
}
