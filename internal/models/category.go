// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBlankName is returned by ValidateName when a name is empty after trimming.
var ErrBlankName = errors.New("name is blank")

// Category is a node of the catalog category tree. Nodes are stored flat and
// point at their parent by ID; the nested view is built on demand.
type Category struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	IsActive    bool       `json:"is_active"`
	Order       int        `json:"order"`

	// Denormalized counts maintained by the count synchronizer.
	DirectProductCount  int        `json:"direct_product_count"`
	SubtreeProductCount int        `json:"subtree_product_count"`
	CountLastComputedAt *time.Time `json:"count_last_computed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Virtual fields populated by readers.
	Children         []Category `json:"children,omitempty"`
	Depth            int        `json:"depth"`
	ChildCount       *int       `json:"child_count,omitempty"`
	LiveProductCount *int       `json:"live_product_count,omitempty"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// HasParent reports whether the category's parent equals parentID
// (both nil counts as equal).
func (c *Category) HasParent(parentID *uuid.UUID) bool {
	return SameParent(c.ParentID, parentID)
}

// SameParent compares two nullable parent references.
func SameParent(a, b *uuid.UUID) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// ValidateName trims name and rejects it when nothing is left.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrBlankName
	}
	return name, nil
}

// SameName compares sibling names the way the uniqueness rule does:
// trimmed and case-insensitive.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CategoryFilter narrows a flat category listing.
type CategoryFilter struct {
	ActiveOnly bool
	// RootOnly restricts the listing to categories without a parent.
	// It takes precedence over ParentID.
	RootOnly bool
	ParentID *uuid.UUID
	// Search is a case-insensitive substring match on the name.
	Search string
}

// CategoryFields is a partial update of the non-count columns of a category.
// Nil fields are left untouched.
type CategoryFields struct {
	Name        *string
	Slug        *string
	Description *string
	ParentID    **uuid.UUID
	IsActive    *bool
	Order       *int
}

// IsEmpty reports whether no field is set.
func (f CategoryFields) IsEmpty() bool {
	return f.Name == nil && f.Slug == nil && f.Description == nil &&
		f.ParentID == nil && f.IsActive == nil && f.Order == nil
}

// Apply copies the set fields onto c.
func (f CategoryFields) Apply(c *Category) {
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.Slug != nil {
		c.Slug = *f.Slug
	}
	if f.Description != nil {
		c.Description = *f.Description
	}
	if f.ParentID != nil {
		c.ParentID = *f.ParentID
	}
	if f.IsActive != nil {
		c.IsActive = *f.IsActive
	}
	if f.Order != nil {
		c.Order = *f.Order
	}
}

// CountUpdate carries the recomputed counters for one category.
type CountUpdate struct {
	Direct     int
	Subtree    int
	ComputedAt time.Time
}

// SortCategories orders siblings by (order, name).
func SortCategories(cats []Category) {
	slices.SortStableFunc(cats, func(a, b Category) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
