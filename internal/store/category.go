// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"catalogd/internal/catalog"
	"catalogd/internal/models"
)

// Constraints on the categories table, see migrations.
const (
	constraintCategorySlug        = "categories_slug_key"
	constraintCategorySiblingName = "idx_categories_sibling_name"
	constraintCategoryName        = "categories_name_check"
	constraintCategoryParent      = "categories_check"
	constraintMembershipCategory  = "product_categories_category_fk"
)

// CategoryStore manages categories in the database.
type CategoryStore struct {
	db *sql.DB
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, slug, description, parent_id, is_active, sort_order,
	direct_product_count, subtree_product_count, count_last_computed_at, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.IsActive, &c.Order,
		&c.DirectProductCount, &c.SubtreeProductCount, &c.CountLastComputedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryStore) queryCategories(ctx context.Context, query string, args ...any) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (s *CategoryStore) findOne(ctx context.Context, query string, args ...any) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// FindCategoryByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	c, err := s.findOne(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// FindCategoryBySlug retrieves a category by slug. Returns nil if not found.
func (s *CategoryStore) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	c, err := s.findOne(ctx, `SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug)
	if err != nil {
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return c, nil
}

// FindCategoriesByParent returns the children of parentID, or the roots
// when parentID is nil.
func (s *CategoryStore) FindCategoriesByParent(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error) {
	items, err := s.queryCategories(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE parent_id IS NOT DISTINCT FROM $1::uuid
		ORDER BY sort_order, name`, parentID)
	if err != nil {
		return nil, fmt.Errorf("find categories by parent: %w", err)
	}
	return items, nil
}

// FindCategoryByNameAndParent finds a sibling by case-insensitive name.
func (s *CategoryStore) FindCategoryByNameAndParent(ctx context.Context, name string, parentID *uuid.UUID) (*models.Category, error) {
	c, err := s.findOne(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE lower(name) = lower($1) AND parent_id IS NOT DISTINCT FROM $2::uuid
		LIMIT 1`, strings.TrimSpace(name), parentID)
	if err != nil {
		return nil, fmt.Errorf("find category by name: %w", err)
	}
	return c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListCategories returns a flat listing ordered by sort_order and name.
func (s *CategoryStore) ListCategories(ctx context.Context, filter models.CategoryFilter) ([]models.Category, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	if filter.RootOnly {
		where = append(where, "parent_id IS NULL")
	} else if filter.ParentID != nil {
		where = append(where, "parent_id = "+arg(*filter.ParentID))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		where = append(where, "name ILIKE '%' || "+arg(likeEscaper.Replace(q))+" || '%'")
	}

	query := `SELECT ` + categoryColumns + ` FROM categories`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sort_order, name`

	items, err := s.queryCategories(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return items, nil
}

// CreateCategory inserts a new category and returns it.
func (s *CategoryStore) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, description, parent_id, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+categoryColumns,
		c.Name, c.Slug, c.Description, c.ParentID, c.IsActive, c.Order,
	)
	result, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", mapConstraint(err, catalog.ErrParentNotFound))
	}
	return result, nil
}

// UpdateCategoryFields writes the set fields of a partial update.
func (s *CategoryStore) UpdateCategoryFields(ctx context.Context, id uuid.UUID, fields models.CategoryFields) error {
	if fields.IsEmpty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if fields.Name != nil {
		set("name", *fields.Name)
	}
	if fields.Slug != nil {
		set("slug", *fields.Slug)
	}
	if fields.Description != nil {
		set("description", *fields.Description)
	}
	if fields.ParentID != nil {
		set("parent_id", *fields.ParentID)
	}
	if fields.IsActive != nil {
		set("is_active", *fields.IsActive)
	}
	if fields.Order != nil {
		set("sort_order", *fields.Order)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE categories SET %s, updated_at = NOW() WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update category: %w", mapConstraint(err, catalog.ErrParentNotFound))
	}
	return nil
}

// UpdateCategoryCounts stores recomputed product counters.
func (s *CategoryStore) UpdateCategoryCounts(ctx context.Context, id uuid.UUID, counts models.CountUpdate) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE categories SET
			direct_product_count = $1, subtree_product_count = $2, count_last_computed_at = $3
		WHERE id = $4
	`, counts.Direct, counts.Subtree, counts.ComputedAt, id)
	if err != nil {
		return fmt.Errorf("update category counts: %w", err)
	}
	return nil
}

// DeleteCategory removes a category by ID. Foreign keys restrict deleting
// a category that still has children or product members.
func (s *CategoryStore) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", mapConstraint(err, catalog.ErrHasChildren))
	}
	return nil
}

// NextSortOrder returns the next sort_order value for a given parent.
func (s *CategoryStore) NextSortOrder(ctx context.Context, parentID *uuid.UUID) (int, error) {
	var maxOrder sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sort_order) FROM categories WHERE parent_id IS NOT DISTINCT FROM $1::uuid`,
		parentID,
	).Scan(&maxOrder)
	if err != nil {
		return 0, fmt.Errorf("next sort order: %w", err)
	}
	if maxOrder.Valid {
		return int(maxOrder.Int64) + 1, nil
	}
	return 0, nil
}

// mapConstraint turns Postgres constraint violations that mirror engine
// checks into the engine's errors. Another writer can slip in between the
// engine's check and the write. A foreign key violation maps to fkErr.
func mapConstraint(err, fkErr error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case constraintCategorySlug:
			return errors.Join(catalog.ErrDuplicateSlug, err)
		case constraintCategorySiblingName:
			return errors.Join(catalog.ErrDuplicateSiblingName, err)
		}
	case "23503":
		if pgErr.ConstraintName == constraintMembershipCategory {
			return errors.Join(catalog.ErrHasProducts, err)
		}
		if fkErr != nil {
			return errors.Join(fkErr, err)
		}
	case "23514":
		switch pgErr.ConstraintName {
		case constraintCategoryName:
			return errors.Join(catalog.ErrInvalidName, err)
		case constraintCategoryParent:
			return errors.Join(catalog.ErrSelfParent, err)
		}
	}
	return err
}
