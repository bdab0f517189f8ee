// Integration tests for the catalog schema. They skip when PostgreSQL is
// not reachable.
package database

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
)

const latestMigration = 4

// catalogDSN points at the docker-compose database unless POSTGRES_* says
// otherwise.
func catalogDSN() string {
	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(get("POSTGRES_USER", "catalogd"), get("POSTGRES_PASSWORD", "changeme")),
		Host:     get("POSTGRES_HOST", "localhost") + ":" + get("POSTGRES_PORT", "5432"),
		Path:     get("POSTGRES_DB", "catalogd"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// migratedDB connects and brings the schema up to date.
func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := Connect(ctx, catalogDSN())
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestConnectPoolLimits(t *testing.T) {
	db := migratedDB(t)
	if got := db.Stats().MaxOpenConnections; got != maxOpenConns {
		t.Errorf("MaxOpenConnections = %d, want %d", got, maxOpenConns)
	}
}

func TestConnectUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	db, err := Connect(ctx, "postgres://catalogd:x@127.0.0.1:1/catalogd?sslmode=disable&connect_timeout=1")
	if err == nil {
		db.Close()
		t.Fatal("Connect to a closed port succeeded")
	}
}

func TestMigrateCreatesCatalogTables(t *testing.T) {
	db := migratedDB(t)
	for _, table := range []string{"categories", "products", "product_categories", "count_recompute_log"} {
		var found bool
		err := db.QueryRow(`SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&found)
		if err != nil {
			t.Fatalf("look up %s: %v", table, err)
		}
		if !found {
			t.Errorf("table %s missing after Migrate", table)
		}
	}
}

// The store translates violations by constraint name, so the names are part
// of the schema's contract.
func TestMigrateConstraintNames(t *testing.T) {
	db := migratedDB(t)
	tests := []struct {
		table string
		name  string
	}{
		{"categories", "categories_slug_key"},
		{"categories", "categories_name_check"},
		{"categories", "categories_check"},
		{"categories", "idx_categories_sibling_name"},
		{"product_categories", "product_categories_category_fk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n int
			err := db.QueryRow(`
				SELECT count(*) FROM (
					SELECT conname AS name FROM pg_constraint WHERE conrelid = $1::regclass
					UNION ALL
					SELECT indexname FROM pg_indexes WHERE tablename = $2
				) s WHERE name = $3`, tt.table, tt.table, tt.name).Scan(&n)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if n == 0 {
				t.Errorf("%s has no constraint or index named %s", tt.table, tt.name)
			}
		})
	}
}

func TestMigrateForeignKeyActions(t *testing.T) {
	db := migratedDB(t)
	// pg_constraint.confdeltype: r restrict, c cascade, n set null.
	tests := []struct {
		table, column string
		onDelete      string
	}{
		{"categories", "parent_id", "r"},
		{"product_categories", "category_id", "r"},
		{"product_categories", "product_id", "c"},
		{"products", "legacy_category_id", "n"},
	}
	for _, tt := range tests {
		t.Run(tt.table+"."+tt.column, func(t *testing.T) {
			var action string
			err := db.QueryRow(`
				SELECT c.confdeltype::text FROM pg_constraint c
				JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = c.conkey[1]
				WHERE c.contype = 'f' AND c.conrelid = $1::regclass AND a.attname = $2`,
				tt.table, tt.column).Scan(&action)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if action != tt.onDelete {
				t.Errorf("ON DELETE action = %q, want %q", action, tt.onDelete)
			}
		})
	}
}

func TestMigrateRerunKeepsVersion(t *testing.T) {
	db := migratedDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		t.Fatalf("GetDBVersion: %v", err)
	}
	if v != latestMigration {
		t.Errorf("schema version = %d, want %d", v, latestMigration)
	}
}
