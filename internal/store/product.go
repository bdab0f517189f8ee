package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"catalogd/internal/models"
)

// ProductStore manages products and their category memberships. The
// membership set lives in product_categories with an explicit position so
// its order survives a round trip.
type ProductStore struct {
	db *sql.DB
}

// NewProductStore returns a new ProductStore.
func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

const productColumns = `p.id, p.name, p.legacy_category_id, p.is_active, p.deleted_at, p.created_at, p.updated_at`

func scanProduct(scanner interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := scanner.Scan(
		&p.ID, &p.Name, &p.LegacyCategoryID, &p.IsActive, &p.DeletedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// queryProducts runs a product query and attaches each product's
// membership set.
func (s *ProductStore) queryProducts(ctx context.Context, query string, args ...any) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachCategories(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ProductStore) attachCategories(ctx context.Context, items []models.Product) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, p := range items {
		ids[i] = p.ID.String()
		index[p.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, category_id FROM product_categories
		WHERE product_id = ANY($1::text[]::uuid[])
		ORDER BY product_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load product categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID, categoryID uuid.UUID
		if err := rows.Scan(&productID, &categoryID); err != nil {
			return fmt.Errorf("scan product category: %w", err)
		}
		i := index[productID]
		items[i].CategoryIDs = append(items[i].CategoryIDs, categoryID)
	}
	return rows.Err()
}

// FindProductByID retrieves a product, soft-deleted or not. Returns nil if
// not found.
func (s *ProductStore) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product by id: %w", err)
	}
	items := []models.Product{*p}
	if err := s.attachCategories(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// FindProductsByCategory returns every product linked to categoryID,
// oldest first.
func (s *ProductStore) FindProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error) {
	items, err := s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products p
		JOIN product_categories pc ON pc.product_id = p.id
		WHERE pc.category_id = $1
		ORDER BY p.created_at, p.id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("find products by category: %w", err)
	}
	return items, nil
}

// RecentProductsByCategory returns up to limit active products linked to
// categoryID, newest first.
func (s *ProductStore) RecentProductsByCategory(ctx context.Context, categoryID uuid.UUID, limit int) ([]models.Product, error) {
	items, err := s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products p
		JOIN product_categories pc ON pc.product_id = p.id
		WHERE pc.category_id = $1 AND p.is_active AND p.deleted_at IS NULL
		ORDER BY p.created_at DESC, p.name
		LIMIT $2`, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent products: %w", err)
	}
	return items, nil
}

// CountActiveProductsByCategory counts active, non-deleted products linked
// to categoryID.
func (s *ProductStore) CountActiveProductsByCategory(ctx context.Context, categoryID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM product_categories pc
		JOIN products p ON p.id = pc.product_id
		WHERE pc.category_id = $1 AND p.is_active AND p.deleted_at IS NULL
	`, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// CountActiveProductsGrouped counts active, non-deleted products per
// category in one query.
func (s *ProductStore) CountActiveProductsGrouped(ctx context.Context) (map[uuid.UUID]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pc.category_id, COUNT(*) FROM product_categories pc
		JOIN products p ON p.id = pc.product_id
		WHERE p.is_active AND p.deleted_at IS NULL
		GROUP BY pc.category_id
	`)
	if err != nil {
		return nil, fmt.Errorf("count products grouped: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan product count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// CreateProduct inserts a product and its memberships in one transaction.
func (s *ProductStore) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	created, err := scanProduct(tx.QueryRowContext(ctx, `
		INSERT INTO products AS p (name, legacy_category_id, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productColumns,
		p.Name, p.LegacyCategoryID, p.IsActive, createdAt,
	))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if err := insertMemberships(ctx, tx, created.ID, p.CategoryIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit product: %w", err)
	}
	created.CategoryIDs = append([]uuid.UUID(nil), p.CategoryIDs...)
	return created, nil
}

func insertMemberships(ctx context.Context, tx *sql.Tx, productID uuid.UUID, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_categories (product_id, category_id, position)
		VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("prepare memberships: %w", err)
	}
	defer stmt.Close()

	for i, id := range categoryIDs {
		if _, err := stmt.ExecContext(ctx, productID, id, i); err != nil {
			return fmt.Errorf("insert membership %s: %w", id, err)
		}
	}
	return nil
}

// UpdateProductCategories replaces a product's membership set and legacy
// category in one transaction.
func (s *ProductStore) UpdateProductCategories(ctx context.Context, id uuid.UUID, categoryIDs []uuid.UUID, legacy *uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = $1`, id); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}
	if err := insertMemberships(ctx, tx, id, categoryIDs); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE products SET legacy_category_id = $1, updated_at = NOW() WHERE id = $2
	`, legacy, id)
	if err != nil {
		return fmt.Errorf("update legacy category: %w", err)
	}
	return tx.Commit()
}

// SetProductActive updates the product's active flag.
func (s *ProductStore) SetProductActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}
	return nil
}

// SoftDeleteProduct marks the product deleted. Memberships are kept.
func (s *ProductStore) SoftDeleteProduct(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	return nil
}
