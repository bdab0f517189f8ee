package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"catalogd/internal/catalog"
)

// TestCatalogEngine runs the engine over Postgres end to end: a product in
// a child category counts toward its parent, and moving the child away
// takes the count with it.
func TestCatalogEngine(t *testing.T) {
	db := testDB(t)
	svc := catalog.New(NewCatalog(db), nil, NewRecomputeLogStore(db))
	ctx := context.Background()

	root, err := svc.Mutator.Create(ctx, catalog.CreateCategoryInput{Name: uniqueName("Engine Parts")})
	if err != nil {
		t.Fatalf("Create root: %v", err)
	}
	other, err := svc.Mutator.Create(ctx, catalog.CreateCategoryInput{Name: uniqueName("Chassis")})
	if err != nil {
		t.Fatalf("Create other: %v", err)
	}
	child, err := svc.Mutator.Create(ctx, catalog.CreateCategoryInput{Name: uniqueName("Pistons"), ParentID: &root.ID})
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}

	p, err := svc.Mutator.CreateProduct(ctx, catalog.CreateProductInput{Name: "Forged piston", CategoryIDs: []uuid.UUID{child.ID}, IsActive: true})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	t.Cleanup(func() {
		cleanProducts(t, db, p.ID)
		cleanCategories(t, db, root.ID, other.ID, child.ID)
	})

	direct, subtree, err := svc.Resolver.Counts(ctx, root.ID)
	if err != nil || direct != 0 || subtree != 1 {
		t.Errorf("root counts = %d/%d, %v; want 0/1", direct, subtree, err)
	}

	if _, err := svc.Mutator.Move(ctx, child.ID, &other.ID); err != nil {
		t.Fatalf("Move: %v", err)
	}
	stored, _ := NewCategoryStore(db).FindCategoryByID(ctx, root.ID)
	if stored.SubtreeProductCount != 0 {
		t.Errorf("stored root subtree = %d after move, want 0", stored.SubtreeProductCount)
	}
	stored, _ = NewCategoryStore(db).FindCategoryByID(ctx, other.ID)
	if stored.SubtreeProductCount != 1 {
		t.Errorf("stored other subtree = %d after move, want 1", stored.SubtreeProductCount)
	}
}
