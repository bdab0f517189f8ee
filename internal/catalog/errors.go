package catalog

import "errors"

var (
	// Validation.
	ErrInvalidName          = errors.New("invalid category name")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidBulkField     = errors.New("field cannot be bulk updated")
	ErrDuplicateSiblingName = errors.New("a sibling category with this name already exists")
	ErrDuplicateSlug        = errors.New("a category with this slug already exists")

	// Structure.
	ErrParentNotFound    = errors.New("parent category not found")
	ErrSelfParent        = errors.New("category cannot be its own parent")
	ErrCircularReference = errors.New("move would create a circular reference")
	ErrCycleDetected     = errors.New("cycle detected in category tree")

	// Delete guards.
	ErrHasChildren = errors.New("category has child categories")
	ErrHasProducts = errors.New("category has products")

	// Lookups.
	ErrCategoryNotFound = errors.New("category not found")
	ErrProductNotFound  = errors.New("product not found")
)
