package repository

import (
	"context"

	"github.com/lootlocal/voucherd/internal/geo"
	"github.com/lootlocal/voucherd/internal/model"
)

// DiscountRepository provides read access to the discount pool.
type DiscountRepository interface {
	// FindCandidates returns available discounts inside the bounding box,
	// optionally restricted to a category and excluding one discount id
	// (for reroll). Inventory-exhausted discounts are filtered out. The box
	// is a prefilter: callers still apply the exact distance check.
	FindCandidates(ctx context.Context, box geo.BoundingBox, category string, excludeID int64) ([]model.Candidate, error)
	// Categories returns the distinct categories that currently have at
	// least one available discount.
	Categories(ctx context.Context) ([]string, error)
}

// StoreRepository provides read access to merchant stores.
type StoreRepository interface {
	// ListWithAvailableDiscounts returns stores that currently offer at
	// least one available discount.
	ListWithAvailableDiscounts(ctx context.Context) ([]model.Store, error)
}
