// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Product carries the catalog fields the category engine cares about.
// CategoryIDs is the authoritative membership set; LegacyCategoryID is a
// derived scalar kept for older clients that only know a single category.
type Product struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	CategoryIDs      []uuid.UUID `json:"category_ids"`
	LegacyCategoryID *uuid.UUID  `json:"category_id"`
	IsActive         bool        `json:"is_active"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	DeletedAt        *time.Time  `json:"deleted_at,omitempty"`
}

// Countable reports whether the product contributes to category counts.
func (p *Product) Countable() bool {
	return p.IsActive && p.DeletedAt == nil
}

// InCategory reports whether categoryID is in the membership set.
func (p *Product) InCategory(categoryID uuid.UUID) bool {
	return slices.Contains(p.CategoryIDs, categoryID)
}

// Normalize rewrites the membership fields in place. See NormalizeMembership.
func (p *Product) Normalize() {
	p.CategoryIDs, p.LegacyCategoryID = NormalizeMembership(p.CategoryIDs, p.LegacyCategoryID)
}

// NormalizeMembership is applied on every write of a product's categories.
// A legacy id missing from the set is merged in (appended), the set is
// deduplicated keeping first occurrences and stripped of nil ids, then the
// legacy field is derived: kept if it is a member, set to the first element
// when unset, cleared when the set ends up empty.
func NormalizeMembership(ids []uuid.UUID, legacy *uuid.UUID) ([]uuid.UUID, *uuid.UUID) {
	out := make([]uuid.UUID, 0, len(ids)+1)
	seen := make(map[uuid.UUID]struct{}, len(ids)+1)
	add := func(id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ids {
		add(id)
	}
	if legacy != nil {
		add(*legacy)
	}

	if len(out) == 0 {
		return out, nil
	}
	if legacy == nil || *legacy == uuid.Nil {
		first := out[0]
		return out, &first
	}
	l := *legacy
	return out, &l
}

// ReplaceCategory swaps from for to in ids, keeping the position of from.
// The result is not normalized; callers run NormalizeMembership afterwards.
func ReplaceCategory(ids []uuid.UUID, from, to uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		if id == from {
			out[i] = to
		} else {
			out[i] = id
		}
	}
	return out
}

// UnionIDs returns the distinct ids of all the given sets, in first-seen order.
func UnionIDs(sets ...[]uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, set := range sets {
		for _, id := range set {
			if id == uuid.Nil {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
