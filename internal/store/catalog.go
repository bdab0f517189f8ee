package store

import (
	"database/sql"

	"catalogd/internal/catalog"
)

// Catalog is the Postgres-backed catalog store: categories and products
// sharing one connection pool.
type Catalog struct {
	*CategoryStore
	*ProductStore
}

var _ catalog.CatalogStore = (*Catalog)(nil)

// NewCatalog returns a Catalog over db.
func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{
		CategoryStore: NewCategoryStore(db),
		ProductStore:  NewProductStore(db),
	}
}
