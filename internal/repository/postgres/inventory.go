package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lootlocal/voucherd/internal/errs"
)

// execer is satisfied by both PgxPool and pgx.Tx, so the inventory mutations
// can run standalone or inside a claim transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// consumeSQL decrements one use and flips availability off when the counter
// hits zero. The WHERE clause re-validates remaining > 0 so the decrement is
// a single atomic read-modify-write; unlimited discounts pass through
// untouched. Zero rows affected means the discount ran out (or vanished)
// between candidate selection and this write.
const consumeSQL = `
UPDATE discounts
SET remaining = CASE WHEN unlimited_use THEN remaining ELSE remaining - 1 END,
    available = CASE WHEN unlimited_use THEN available ELSE remaining > 1 END
WHERE id = $1 AND available AND (unlimited_use OR remaining > 0)`

// releaseSQL is the inverse of consume, used when a reroll discards a claim.
// Unlimited discounts are never released because they are never consumed.
const releaseSQL = `
UPDATE discounts
SET remaining = remaining + 1, available = TRUE
WHERE id = $1 AND NOT unlimited_use`

func consumeDiscount(ctx context.Context, q execer, discountID int64) error {
	tag, err := q.Exec(ctx, consumeSQL, discountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrOutOfStock
	}
	return nil
}

func releaseDiscount(ctx context.Context, q execer, discountID int64) error {
	_, err := q.Exec(ctx, releaseSQL, discountID)
	return err
}
