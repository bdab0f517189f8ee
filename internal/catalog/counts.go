package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"catalogd/internal/models"
)

// RecomputeSummary is the result of a full count recomputation.
type RecomputeSummary struct {
	TotalCategories int `json:"total_categories"`
	UpdatedCount    int `json:"updated"`
	// Skipped counts categories left untouched because they sit on a
	// parent cycle.
	Skipped int `json:"skipped"`
}

// CountSynchronizer keeps the denormalized per-category product counts in
// line with product membership. Counts are a projection: every method can be
// re-run at any time and converges on the same values.
type CountSynchronizer struct {
	store    CatalogStore
	resolver *Resolver
	cache    TreeCache
	audit    RecomputeLogger
	now      func() time.Time
}

// NewCountSynchronizer returns a synchronizer. cache and audit may be nil.
func NewCountSynchronizer(store CatalogStore, resolver *Resolver, cache TreeCache, audit RecomputeLogger) *CountSynchronizer {
	return &CountSynchronizer{
		store:    store,
		resolver: resolver,
		cache:    cache,
		audit:    audit,
		now:      time.Now,
	}
}

// Recompute refreshes the counts of id and then of every ancestor up to the
// root.
func (s *CountSynchronizer) Recompute(ctx context.Context, id uuid.UUID) error {
	c, err := s.store.FindCategoryByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return ErrCategoryNotFound
	}
	return s.RecomputeMany(ctx, id)
}

// RecomputeMany refreshes the given categories and all their ancestors,
// writing each category at most once. Ids that no longer exist are skipped.
// A cycle in one chain does not stop the others from being refreshed.
func (s *CountSynchronizer) RecomputeMany(ctx context.Context, ids ...uuid.UUID) error {
	targets, chainErr := s.withAncestors(ctx, ids)

	var errs []error
	if chainErr != nil {
		errs = append(errs, chainErr)
	}
	for _, id := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.refresh(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	s.invalidate(ctx)
	return errors.Join(errs...)
}

// withAncestors expands ids to the deduplicated set of ids plus every
// ancestor, in discovery order.
func (s *CountSynchronizer) withAncestors(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	var errs []error

	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		chain := make(map[uuid.UUID]struct{})
		current := &id
		for current != nil {
			cid := *current
			if _, ok := chain[cid]; ok {
				cycleDetectedTotal.WithLabelValues("recompute").Inc()
				errs = append(errs, fmt.Errorf("recompute chain of %s revisits %s: %w", id, cid, ErrCycleDetected))
				break
			}
			chain[cid] = struct{}{}
			if _, ok := seen[cid]; ok {
				// The rest of the chain was collected by an earlier id.
				break
			}

			c, err := s.store.FindCategoryByID(ctx, cid)
			if err != nil {
				errs = append(errs, fmt.Errorf("find category %s: %w", cid, err))
				break
			}
			if c == nil {
				break
			}
			seen[cid] = struct{}{}
			out = append(out, cid)
			current = c.ParentID
		}
	}
	return out, errors.Join(errs...)
}

func (s *CountSynchronizer) refresh(ctx context.Context, id uuid.UUID) error {
	direct, subtree, err := s.resolver.Counts(ctx, id)
	if err != nil {
		return fmt.Errorf("compute counts of %s: %w", id, err)
	}
	err = s.store.UpdateCategoryCounts(ctx, id, models.CountUpdate{
		Direct:     direct,
		Subtree:    subtree,
		ComputedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("update counts of %s: %w", id, err)
	}
	return nil
}

// TriggerRecompute runs RecomputeMany on behalf of a mutation. Failures are
// logged and counted but never returned: the mutation has already been
// written and RecomputeAll repairs any drift.
func (s *CountSynchronizer) TriggerRecompute(ctx context.Context, reason string, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	err := s.RecomputeMany(ctx, ids...)
	recomputeTotal.WithLabelValues(reason, outcome(err)).Inc()
	if err != nil {
		slog.Warn("count recompute failed", "reason", reason, "ids", ids, "error", err)
	}
}

// RecomputeAll recomputes every category from one snapshot of categories and
// grouped product counts, and writes only the rows whose counts changed.
// Categories caught in a parent cycle are skipped and reported through the
// returned error; every other category is still refreshed. The context is
// checked between writes.
func (s *CountSynchronizer) RecomputeAll(ctx context.Context, reason string) (RecomputeSummary, error) {
	start := time.Now()

	cats, err := s.store.ListCategories(ctx, models.CategoryFilter{})
	if err != nil {
		return RecomputeSummary{}, fmt.Errorf("list categories: %w", err)
	}
	direct, err := s.store.CountActiveProductsGrouped(ctx)
	if err != nil {
		return RecomputeSummary{}, fmt.Errorf("count products: %w", err)
	}

	subtree, cyclic := subtreeTotals(cats, direct)
	summary := RecomputeSummary{TotalCategories: len(cats)}
	computedAt := s.now()

	var errs []error
	for _, c := range cats {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, bad := cyclic[c.ID]; bad {
			continue
		}
		d, t := direct[c.ID], subtree[c.ID]
		if c.DirectProductCount == d && c.SubtreeProductCount == t {
			continue
		}
		err := s.store.UpdateCategoryCounts(ctx, c.ID, models.CountUpdate{Direct: d, Subtree: t, ComputedAt: computedAt})
		if err != nil {
			errs = append(errs, fmt.Errorf("update counts of %s: %w", c.ID, err))
			continue
		}
		summary.UpdatedCount++
	}
	if len(cyclic) > 0 {
		summary.Skipped = len(cyclic)
		cycleDetectedTotal.WithLabelValues("recompute_all").Add(float64(len(cyclic)))
		errs = append(errs, fmt.Errorf("%d categories skipped: %w", len(cyclic), ErrCycleDetected))
	}

	took := time.Since(start)
	recomputeAllDuration.Observe(took.Seconds())
	recomputeAllUpdated.Set(float64(summary.UpdatedCount))
	err = errors.Join(errs...)
	recomputeTotal.WithLabelValues(reason, outcome(err)).Inc()

	if summary.UpdatedCount > 0 {
		s.invalidate(ctx)
	}
	if s.audit != nil {
		s.audit.LogRecompute(ctx, reason, summary, took)
	}
	slog.Info("counts recomputed",
		"reason", reason,
		"total", summary.TotalCategories,
		"updated", summary.UpdatedCount,
		"skipped", summary.Skipped,
		"took", took,
	)
	return summary, err
}

// subtreeTotals sums direct counts bottom-up over the flat category list.
// Categories whose parent links loop back on themselves are returned in
// cyclic and have no total.
func subtreeTotals(cats []models.Category, direct map[uuid.UUID]int) (map[uuid.UUID]int, map[uuid.UUID]struct{}) {
	const (
		unvisited = iota
		visiting
		done
	)
	children := make(map[uuid.UUID][]uuid.UUID, len(cats))
	for _, c := range cats {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	state := make(map[uuid.UUID]int, len(cats))
	totals := make(map[uuid.UUID]int, len(cats))
	cyclic := make(map[uuid.UUID]struct{})

	var walk func(id uuid.UUID) (int, bool)
	walk = func(id uuid.UUID) (int, bool) {
		switch state[id] {
		case visiting:
			return 0, false
		case done:
			if _, bad := cyclic[id]; bad {
				return 0, false
			}
			return totals[id], true
		}
		state[id] = visiting
		total := direct[id]
		ok := true
		for _, child := range children[id] {
			n, childOK := walk(child)
			if !childOK {
				ok = false
				continue
			}
			total += n
		}
		state[id] = done
		if !ok {
			cyclic[id] = struct{}{}
			return 0, false
		}
		totals[id] = total
		return total, true
	}

	for _, c := range cats {
		walk(c.ID)
	}
	return totals, cyclic
}

func (s *CountSynchronizer) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
