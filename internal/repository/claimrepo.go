package repository

import (
	"context"
	"time"

	"github.com/lootlocal/voucherd/internal/model"
)

// ClaimRepository owns claim rows and the transactional lifecycle writes.
// Every write method commits the claim mutation and its inventory mutation
// in one transaction, or not at all.
type ClaimRepository interface {
	// ActiveVoucher returns the user's most recent valid claim joined with
	// its discount and store, or ErrNotFound.
	ActiveVoucher(ctx context.Context, userID int64) (*model.Voucher, error)

	// LatestFinalized returns the user's most recently finalized claim
	// regardless of validity, or ErrNotFound. Used for the lazy daily reset.
	LatestFinalized(ctx context.Context, userID int64) (*model.Claim, error)

	// Roll consumes one use of the claim's discount and inserts the claim.
	// Returns ErrOutOfStock when the inventory re-check fails.
	Roll(ctx context.Context, c *model.Claim) error

	// Reroll releases the previous claim's discount, marks the previous
	// claim superseded (claimed=false, valid=false), consumes the next
	// claim's discount, inserts the next claim and decrements the user's
	// reroll budget. Returns ErrNoActiveClaim when the previous claim is no
	// longer pending, ErrNoRerolls when the budget hit zero, ErrOutOfStock
	// when the replacement ran out.
	Reroll(ctx context.Context, prevClaimID, prevDiscountID int64, next *model.Claim) error

	// Finalize locks in the user's pending claim and sets claimed_today.
	// Returns the updated claim or ErrNoActiveClaim.
	Finalize(ctx context.Context, userID int64, now time.Time) (*model.Claim, error)

	// Redeem marks the claim behind token redeemed exactly once. Returns
	// ErrNotFound, ErrAlreadyRedeemed or ErrExpired as appropriate.
	Redeem(ctx context.Context, token string, now time.Time) (*model.Claim, error)

	// ResetCycle starts a fresh daily cycle: invalidates any leftover valid
	// claim and clears claimed_today while restoring the reroll budget, in
	// one transaction. Called once the previous cycle's local midnight has
	// passed.
	ResetCycle(ctx context.Context, userID int64, rerolls int) error
}
