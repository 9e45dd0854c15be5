// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// State is a user's position in the daily claim cycle.
type State string

const (
	// StateHome means no active claim; the user may roll.
	StateHome State = "home"
	// StateReroll means an unfinalized claim is pending; the user may claim or reroll.
	StateReroll State = "reroll"
	// StateVoucher means the claim is finalized and not yet expired.
	StateVoucher State = "voucher"
	// StateRedeemed means the cycle is exhausted until the next local midnight.
	StateRedeemed State = "redeemed"
)

// CategoryAny matches every discount category.
const CategoryAny = "any"

// User is one row per device. Rerolls and ClaimedToday are cycle-scoped and
// reset lazily once the cycle's local midnight has passed.
type User struct {
	ID           int64
	DeviceID     string // opaque, unique
	Rerolls      int
	Timezone     string // IANA name, captured at first roll
	ClaimedToday bool
}

// Store is a merchant location offering discounts.
type Store struct {
	ID      int64
	Name    string
	Website string
	Lat     float64 // decimal degrees
	Lng     float64
}

// Discount is a voucher template offered by a store.
// Invariant: Available implies UnlimitedUse or Remaining > 0.
type Discount struct {
	ID           int64
	StoreID      int64
	Details      string
	Category     string
	UnlimitedUse bool
	Remaining    int // meaningless when UnlimitedUse
	Available    bool
}

// Claim is one roll event for a user.
//
// Claimed is tri-state: nil means rolled but not finalized, true means the
// user locked in this voucher for the day, false (with Valid=false) marks a
// claim superseded by a reroll.
type Claim struct {
	ID         int64
	UserID     int64 // claimed_by
	DiscountID int64
	Token      string // unique, opaque; sole handle for redemption
	Claimed    *bool
	Redeemed   bool
	Category   string // category the user searched under
	RollTime   time.Time
	ClaimTime  *time.Time
	RedeemTime *time.Time
	Valid      bool
	Timezone   string // captured at roll time; later changes don't move expiry
}

// IsPending reports whether the claim is rolled but not yet finalized.
func (c *Claim) IsPending() bool { return c.Valid && c.Claimed == nil }

// IsFinalized reports whether the user locked in this claim.
func (c *Claim) IsFinalized() bool { return c.Claimed != nil && *c.Claimed }

// Voucher bundles a claim with its discount and store for presentation.
type Voucher struct {
	Claim    Claim
	Discount Discount
	Store    Store
}

// Candidate pairs a discount with its store so the matcher can apply the
// exact distance check after the bounding-box prefilter.
type Candidate struct {
	Discount Discount
	Store    Store
}
