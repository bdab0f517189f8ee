package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"catalogd/internal/catalog"
	"catalogd/internal/models"
)

// seedTree is the sample catalog created on an empty development store.
var seedTree = []struct {
	name     string
	children []string
}{
	{name: "Engine Parts", children: []string{"Pistons", "Gaskets", "Valves"}},
	{name: "Brakes", children: []string{"Brake Pads", "Rotors"}},
}

// Seed populates an empty catalog with sample categories and a few
// products. It goes through the engine so slugs, sort order and counts are
// filled in the same way as for real data. A catalog that already has
// categories is left untouched.
func Seed(ctx context.Context, svc *catalog.Service) error {
	existing, err := svc.Reader.List(ctx, models.CategoryFilter{})
	if err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("catalog already seeded, skipping")
		return nil
	}

	var categories, products int
	for _, root := range seedTree {
		parent, err := svc.Mutator.Create(ctx, catalog.CreateCategoryInput{Name: root.name})
		if err != nil {
			return fmt.Errorf("seed category %q: %w", root.name, err)
		}
		categories++

		for _, name := range root.children {
			child, err := svc.Mutator.Create(ctx, catalog.CreateCategoryInput{Name: name, ParentID: &parent.ID})
			if err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
			categories++

			_, err = svc.Mutator.CreateProduct(ctx, catalog.CreateProductInput{
				Name:        "Sample " + name,
				CategoryIDs: []uuid.UUID{child.ID},
				IsActive:    true,
			})
			if err != nil {
				return fmt.Errorf("seed product for %q: %w", name, err)
			}
			products++
		}
	}

	slog.Info("catalog seeded with sample data",
		"categories", categories,
		"products", products,
	)
	return nil
}
