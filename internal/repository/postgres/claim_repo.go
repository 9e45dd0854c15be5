package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lootlocal/voucherd/internal/errs"
	"github.com/lootlocal/voucherd/internal/model"
)

// ClaimRepo implements ClaimRepository using PostgreSQL.
type ClaimRepo struct{ db *DB }

// NewClaimRepo constructs a claim repository.
func NewClaimRepo(db *DB) *ClaimRepo { return &ClaimRepo{db: db} }

const claimColumns = `id, claimed_by, discount_id, token, claimed, redeemed,
       selected_category, roll_time, claim_time, redeemed_time, valid, user_timezone`

func scanClaim(row pgx.Row, c *model.Claim) error {
	return row.Scan(
		&c.ID, &c.UserID, &c.DiscountID, &c.Token, &c.Claimed, &c.Redeemed,
		&c.Category, &c.RollTime, &c.ClaimTime, &c.RedeemTime, &c.Valid, &c.Timezone,
	)
}

// ActiveVoucher returns the most recent valid claim with its discount and store.
func (r *ClaimRepo) ActiveVoucher(ctx context.Context, userID int64) (*model.Voucher, error) {
	const q = `
SELECT c.id, c.claimed_by, c.discount_id, c.token, c.claimed, c.redeemed,
       c.selected_category, c.roll_time, c.claim_time, c.redeemed_time, c.valid, c.user_timezone,
       d.id, d.store_id, d.details, d.category, d.unlimited_use, d.remaining, d.available,
       s.id, s.name, s.website, s.lat, s.lng
FROM claimed c
JOIN discounts d ON d.id = c.discount_id
JOIN stores s ON s.id = d.store_id
WHERE c.claimed_by=$1 AND c.valid
ORDER BY c.roll_time DESC
LIMIT 1`
	row := r.db.Pool.QueryRow(ctx, q, userID)
	var v model.Voucher
	err := row.Scan(
		&v.Claim.ID, &v.Claim.UserID, &v.Claim.DiscountID, &v.Claim.Token, &v.Claim.Claimed,
		&v.Claim.Redeemed, &v.Claim.Category, &v.Claim.RollTime, &v.Claim.ClaimTime,
		&v.Claim.RedeemTime, &v.Claim.Valid, &v.Claim.Timezone,
		&v.Discount.ID, &v.Discount.StoreID, &v.Discount.Details, &v.Discount.Category,
		&v.Discount.UnlimitedUse, &v.Discount.Remaining, &v.Discount.Available,
		&v.Store.ID, &v.Store.Name, &v.Store.Website, &v.Store.Lat, &v.Store.Lng,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// LatestFinalized returns the most recently finalized claim, valid or not.
func (r *ClaimRepo) LatestFinalized(ctx context.Context, userID int64) (*model.Claim, error) {
	const q = `
SELECT ` + claimColumns + `
FROM claimed
WHERE claimed_by=$1 AND claimed = TRUE
ORDER BY claim_time DESC
LIMIT 1`
	var c model.Claim
	if err := scanClaim(r.db.Pool.QueryRow(ctx, q, userID), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

const insertClaimSQL = `
INSERT INTO claimed (claimed_by, discount_id, token, selected_category, roll_time, valid, user_timezone)
VALUES ($1, $2, $3, $4, $5, TRUE, $6)
RETURNING id`

// Roll consumes one use of the discount and inserts the claim in one
// transaction. The consume re-check closes the race between candidate
// selection and this write; the partial unique index on (claimed_by) WHERE
// valid rejects the insert when a concurrent roll already committed a valid
// claim for the same user, surfacing as ErrAlreadyExists.
func (r *ClaimRepo) Roll(ctx context.Context, c *model.Claim) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if err = consumeDiscount(ctx, tx, c.DiscountID); err != nil {
		return err
	}
	row := tx.QueryRow(ctx, insertClaimSQL,
		c.UserID, c.DiscountID, c.Token, c.Category, c.RollTime, c.Timezone)
	if err = row.Scan(&c.ID); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return err
	}
	c.Valid = true
	return nil
}

// Reroll atomically swaps the pending claim for a replacement: release the
// previous discount, supersede the previous claim, consume the new discount,
// insert the new claim and spend one reroll. Any failure rolls the whole
// swap back, so a reroll that cannot complete never loses the held voucher.
func (r *ClaimRepo) Reroll(ctx context.Context, prevClaimID, prevDiscountID int64, next *model.Claim) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	// Supersede first: the conditional update doubles as the pending-state
	// re-check under concurrent rerolls for the same user.
	const supersede = `
UPDATE claimed SET claimed=FALSE, valid=FALSE
WHERE id=$1 AND valid AND claimed IS NULL`
	tag, err := tx.Exec(ctx, supersede, prevClaimID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNoActiveClaim
	}

	if err = releaseDiscount(ctx, tx, prevDiscountID); err != nil {
		return err
	}
	if err = consumeDiscount(ctx, tx, next.DiscountID); err != nil {
		return err
	}

	row := tx.QueryRow(ctx, insertClaimSQL,
		next.UserID, next.DiscountID, next.Token, next.Category, next.RollTime, next.Timezone)
	if err = row.Scan(&next.ID); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return err
	}
	next.Valid = true

	const spend = `
UPDATE users SET rerolls = rerolls - 1 WHERE id=$1 AND rerolls > 0`
	tag, err = tx.Exec(ctx, spend, next.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNoRerolls
	}
	return nil
}

// Finalize locks in the pending claim and sets claimed_today, atomically.
func (r *ClaimRepo) Finalize(ctx context.Context, userID int64, now time.Time) (c *model.Claim, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			c = nil
		}
	}()

	const q = `
UPDATE claimed SET claimed=TRUE, claim_time=$2
WHERE claimed_by=$1 AND valid AND claimed IS NULL
RETURNING ` + claimColumns
	c = &model.Claim{}
	if err = scanClaim(tx.QueryRow(ctx, q, userID, now), c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNoActiveClaim
		}
		return nil, err
	}

	const mark = `
UPDATE users SET claimed_today=TRUE WHERE id=$1`
	if _, err = tx.Exec(ctx, mark, userID); err != nil {
		return nil, err
	}
	return c, nil
}

// Redeem marks the claim behind token redeemed exactly once. The row lock
// serializes concurrent attempts so the second one always observes the
// redeemed flag.
func (r *ClaimRepo) Redeem(ctx context.Context, token string, now time.Time) (c *model.Claim, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			c = nil
		}
	}()

	const sel = `
SELECT ` + claimColumns + `
FROM claimed WHERE token=$1
FOR UPDATE`
	c = &model.Claim{}
	if err = scanClaim(tx.QueryRow(ctx, sel, token), c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if c.Redeemed {
		return nil, errs.ErrAlreadyRedeemed
	}
	if !c.Valid {
		return nil, errs.ErrExpired
	}

	const upd = `
UPDATE claimed SET redeemed=TRUE, redeemed_time=$2, valid=FALSE WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, c.ID, now); err != nil {
		return nil, err
	}
	c.Redeemed = true
	c.RedeemTime = &now
	c.Valid = false
	return c, nil
}

// ResetCycle invalidates any leftover valid claim from the finished cycle
// and clears the user's cycle-scoped flags, atomically. Without the claim
// invalidation a fresh roll could coexist with the previous cycle's claim
// and break the single-valid-claim invariant.
func (r *ClaimRepo) ResetCycle(ctx context.Context, userID int64, rerolls int) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const expire = `
UPDATE claimed SET valid=FALSE WHERE claimed_by=$1 AND valid`
	if _, err = tx.Exec(ctx, expire, userID); err != nil {
		return err
	}

	const reset = `
UPDATE users SET claimed_today=FALSE, rerolls=$2 WHERE id=$1`
	tag, err := tx.Exec(ctx, reset, userID, rerolls)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
