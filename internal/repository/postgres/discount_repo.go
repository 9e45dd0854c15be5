package postgres

import (
	"context"

	"github.com/lootlocal/voucherd/internal/geo"
	"github.com/lootlocal/voucherd/internal/model"
)

// DiscountRepo implements DiscountRepository using PostgreSQL.
type DiscountRepo struct{ db *DB }

// NewDiscountRepo constructs a discount repository.
func NewDiscountRepo(db *DB) *DiscountRepo { return &DiscountRepo{db: db} }

// FindCandidates runs the bounding-box prefilter in SQL and returns eligible
// discounts joined with their stores. Category "" means any; excludeID 0
// means no exclusion.
func (r *DiscountRepo) FindCandidates(
	ctx context.Context, box geo.BoundingBox, category string, excludeID int64,
) ([]model.Candidate, error) {
	const q = `
SELECT d.id, d.store_id, d.details, d.category, d.unlimited_use, d.remaining, d.available,
       s.id, s.name, s.website, s.lat, s.lng
FROM discounts d
JOIN stores s ON s.id = d.store_id
WHERE d.available
  AND (d.unlimited_use OR d.remaining > 0)
  AND ($1 = 0 OR d.id <> $1)
  AND ($2 = '' OR d.category = $2)
  AND s.lat BETWEEN $3 AND $4
  AND s.lng BETWEEN $5 AND $6`
	rows, err := r.db.Pool.Query(ctx, q,
		excludeID, category, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(
			&c.Discount.ID, &c.Discount.StoreID, &c.Discount.Details, &c.Discount.Category,
			&c.Discount.UnlimitedUse, &c.Discount.Remaining, &c.Discount.Available,
			&c.Store.ID, &c.Store.Name, &c.Store.Website, &c.Store.Lat, &c.Store.Lng,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Categories returns distinct categories with at least one available discount.
func (r *DiscountRepo) Categories(ctx context.Context) ([]string, error) {
	const q = `
SELECT DISTINCT category FROM discounts WHERE available ORDER BY category`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StoreRepo implements StoreRepository using PostgreSQL.
type StoreRepo struct{ db *DB }

// NewStoreRepo constructs a store repository.
func NewStoreRepo(db *DB) *StoreRepo { return &StoreRepo{db: db} }

// ListWithAvailableDiscounts returns stores that currently offer at least
// one available discount.
func (r *StoreRepo) ListWithAvailableDiscounts(ctx context.Context) ([]model.Store, error) {
	const q = `
SELECT DISTINCT s.id, s.name, s.website, s.lat, s.lng
FROM stores s
JOIN discounts d ON d.store_id = s.id
WHERE d.available
ORDER BY s.name, s.id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Store
	for rows.Next() {
		var s model.Store
		if err := rows.Scan(&s.ID, &s.Name, &s.Website, &s.Lat, &s.Lng); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
