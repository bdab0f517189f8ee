package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"catalogd/internal/models"
)

const (
	defaultRecentProducts = 5
	maxRecentProducts     = 50
	rootStatsWorkers      = 8
)

// CategoryDetail is a single category with its live product count and most
// recent active products.
type CategoryDetail struct {
	Category         models.Category  `json:"category"`
	LiveProductCount int              `json:"live_product_count"`
	RecentProducts   []models.Product `json:"recent_products"`
}

// Reader serves read-only views of the category tree. It takes no locks.
type Reader struct {
	store    CatalogStore
	resolver *Resolver
	cache    TreeCache
	group    singleflight.Group
}

// NewReader returns a Reader. cache may be nil.
func NewReader(store CatalogStore, resolver *Resolver, cache TreeCache) *Reader {
	return &Reader{store: store, resolver: resolver, cache: cache}
}

// List returns a flat listing sorted by (order, name).
func (r *Reader) List(ctx context.Context, filter models.CategoryFilter) ([]models.Category, error) {
	cats, err := r.store.ListCategories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Tree returns the category forest. With activeOnly, inactive categories and
// everything below them are left out.
func (r *Reader) Tree(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	if r.cache != nil {
		if tree, ok := r.cache.GetTree(ctx, activeOnly); ok {
			treeCacheTotal.WithLabelValues("hit").Inc()
			return tree, nil
		}
		treeCacheTotal.WithLabelValues("miss").Inc()
	}

	key := "all"
	if activeOnly {
		key = "active"
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		gc, versioned := r.cache.(*generationCache)
		var gen uint64
		if versioned {
			gen = gc.gen.Load()
		}
		flat, err := r.store.ListCategories(ctx, models.CategoryFilter{ActiveOnly: activeOnly})
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		tree, err := BuildTree(flat)
		if err != nil {
			return nil, err
		}
		switch {
		case versioned:
			if !gc.setIfCurrent(ctx, activeOnly, tree, gen) {
				treeCacheTotal.WithLabelValues("stale").Inc()
			}
		case r.cache != nil:
			r.cache.SetTree(ctx, activeOnly, tree)
		}
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Category), nil
}

// BuildTree groups a flat category list into a forest starting from the
// roots. Siblings are sorted by (order, name) and every node carries its
// depth. Categories whose parent is not in flat are dropped.
func BuildTree(flat []models.Category) ([]models.Category, error) {
	byParent := make(map[uuid.UUID][]models.Category)
	var roots []models.Category
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	visited := make(map[uuid.UUID]struct{}, len(flat))
	var build func(level []models.Category, depth int) ([]models.Category, error)
	build = func(level []models.Category, depth int) ([]models.Category, error) {
		level = slices.Clone(level)
		models.SortCategories(level)
		for i := range level {
			if _, seen := visited[level[i].ID]; seen {
				cycleDetectedTotal.WithLabelValues("tree").Inc()
				return nil, fmt.Errorf("tree revisits %s: %w", level[i].ID, ErrCycleDetected)
			}
			visited[level[i].ID] = struct{}{}
			level[i].Depth = depth
			children, err := build(byParent[level[i].ID], depth+1)
			if err != nil {
				return nil, err
			}
			level[i].Children = children
		}
		return level, nil
	}
	tree, err := build(roots, 0)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = []models.Category{}
	}
	return tree, nil
}

// Breadcrumb returns the path from the root down to id.
func (r *Reader) Breadcrumb(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	c, err := r.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, ErrCategoryNotFound
	}

	path := []models.Category{*c}
	visited := map[uuid.UUID]struct{}{id: {}}
	for c.ParentID != nil {
		pid := *c.ParentID
		if _, seen := visited[pid]; seen {
			cycleDetectedTotal.WithLabelValues("breadcrumb").Inc()
			return nil, fmt.Errorf("path of %s revisits %s: %w", id, pid, ErrCycleDetected)
		}
		visited[pid] = struct{}{}
		parent, err := r.store.FindCategoryByID(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("find ancestor: %w", err)
		}
		if parent == nil {
			break
		}
		path = append(path, *parent)
		c = parent
	}
	slices.Reverse(path)
	for i := range path {
		path[i].Depth = i
	}
	return path, nil
}

// Roots returns the top-level categories. With includeStats each root also
// carries its number of children and its live product count.
func (r *Reader) Roots(ctx context.Context, activeOnly, includeStats bool) ([]models.Category, error) {
	roots, err := r.store.ListCategories(ctx, models.CategoryFilter{RootOnly: true, ActiveOnly: activeOnly})
	if err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}
	if !includeStats {
		return roots, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rootStatsWorkers)
	for i := range roots {
		g.Go(func() error {
			id := roots[i].ID
			children, err := r.store.ListCategories(ctx, models.CategoryFilter{ParentID: &id, ActiveOnly: activeOnly})
			if err != nil {
				return fmt.Errorf("list children of %s: %w", id, err)
			}
			live, err := r.resolver.DirectProductCount(ctx, id)
			if err != nil {
				return err
			}
			childCount := len(children)
			roots[i].ChildCount = &childCount
			roots[i].LiveProductCount = &live
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return roots, nil
}

// Get returns one category with its live product count and up to
// recentLimit recent products. A non-positive limit uses the default.
func (r *Reader) Get(ctx context.Context, id uuid.UUID, recentLimit int) (*CategoryDetail, error) {
	c, err := r.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, ErrCategoryNotFound
	}

	if recentLimit <= 0 {
		recentLimit = defaultRecentProducts
	}
	recentLimit = min(recentLimit, maxRecentProducts)

	live, err := r.resolver.DirectProductCount(ctx, id)
	if err != nil {
		return nil, err
	}
	recent, err := r.store.RecentProductsByCategory(ctx, id, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent products: %w", err)
	}
	if recent == nil {
		recent = []models.Product{}
	}
	c.LiveProductCount = &live
	return &CategoryDetail{Category: *c, LiveProductCount: live, RecentProducts: recent}, nil
}
