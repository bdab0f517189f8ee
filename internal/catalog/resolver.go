package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Resolver answers membership questions over the category tree: which
// categories sit under a node and how many products they hold.
type Resolver struct {
	store CatalogStore
}

// NewResolver returns a Resolver reading from store.
func NewResolver(store CatalogStore) *Resolver {
	return &Resolver{store: store}
}

// DescendantIDs returns every category below id in breadth-first order,
// excluding id itself. With activeOnly, inactive children are neither
// returned nor descended into. A revisited node means the stored parent links
// form a cycle and yields ErrCycleDetected.
func (r *Resolver) DescendantIDs(ctx context.Context, id uuid.UUID, activeOnly bool) ([]uuid.UUID, error) {
	c, err := r.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, ErrCategoryNotFound
	}
	return r.descendants(ctx, id, activeOnly)
}

func (r *Resolver) descendants(ctx context.Context, id uuid.UUID, activeOnly bool) ([]uuid.UUID, error) {
	visited := map[uuid.UUID]struct{}{id: {}}
	queue := []uuid.UUID{id}
	var out []uuid.UUID

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		parent := current
		children, err := r.store.FindCategoriesByParent(ctx, &parent)
		if err != nil {
			return nil, fmt.Errorf("find children of %s: %w", current, err)
		}
		for _, child := range children {
			if activeOnly && !child.IsActive {
				continue
			}
			if _, seen := visited[child.ID]; seen {
				cycleDetectedTotal.WithLabelValues("descendants").Inc()
				return nil, fmt.Errorf("descendants of %s revisit %s: %w", id, child.ID, ErrCycleDetected)
			}
			visited[child.ID] = struct{}{}
			out = append(out, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// AncestorIDs returns the parent chain of id, nearest first. The walk stops
// at a root or at a dangling parent reference.
func (r *Resolver) AncestorIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	c, err := r.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, ErrCategoryNotFound
	}

	visited := map[uuid.UUID]struct{}{id: {}}
	var out []uuid.UUID
	for c.ParentID != nil {
		pid := *c.ParentID
		if _, seen := visited[pid]; seen {
			cycleDetectedTotal.WithLabelValues("ancestors").Inc()
			return nil, fmt.Errorf("ancestors of %s revisit %s: %w", id, pid, ErrCycleDetected)
		}
		visited[pid] = struct{}{}

		parent, err := r.store.FindCategoryByID(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("find ancestor %s: %w", pid, err)
		}
		if parent == nil {
			break
		}
		out = append(out, pid)
		c = parent
	}
	return out, nil
}

// DirectProductCount counts active, non-deleted products linked to id.
func (r *Resolver) DirectProductCount(ctx context.Context, id uuid.UUID) (int, error) {
	n, err := r.store.CountActiveProductsByCategory(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("count products of %s: %w", id, err)
	}
	return n, nil
}

// SubtreeProductCount sums the direct counts of id and all its descendants.
// A product linked to two categories of the subtree is counted once per link.
func (r *Resolver) SubtreeProductCount(ctx context.Context, id uuid.UUID) (int, error) {
	_, subtree, err := r.Counts(ctx, id)
	return subtree, err
}

// Counts returns the direct and subtree counts of id in one walk.
func (r *Resolver) Counts(ctx context.Context, id uuid.UUID) (direct, subtree int, err error) {
	direct, err = r.DirectProductCount(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	ids, err := r.descendants(ctx, id, false)
	if err != nil {
		return 0, 0, err
	}
	subtree = direct
	for _, d := range ids {
		n, err := r.DirectProductCount(ctx, d)
		if err != nil {
			return 0, 0, err
		}
		subtree += n
	}
	return direct, subtree, nil
}
