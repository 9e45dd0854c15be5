// Package service contains the voucher allocation and lifecycle engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/lootlocal/voucherd/internal/cache"
	"github.com/lootlocal/voucherd/internal/cycle"
	"github.com/lootlocal/voucherd/internal/errs"
	"github.com/lootlocal/voucherd/internal/geo"
	"github.com/lootlocal/voucherd/internal/model"
	"github.com/lootlocal/voucherd/internal/repository"
)

const (
	// rerollBudget is the per-cycle reroll allowance restored at reset.
	rerollBudget = 2

	// consumeRetries bounds how often a roll re-picks a candidate after the
	// inventory re-check loses a race. Candidates that ran out are filtered
	// by the next selection, so a couple of retries is enough.
	consumeRetries = 3

	listCacheTTL = 5 * time.Minute

	storesCacheKey     = "stores_with_discounts"
	categoriesCacheKey = "discount_categories"
	voucherCachePrefix = "voucher:"
)

// RollInput carries the parameters shared by Roll and Reroll.
type RollInput struct {
	DeviceID string
	Lat      float64
	Lng      float64
	Timezone string
	Category string
}

func (in RollInput) validate() error {
	if in.DeviceID == "" {
		return fmt.Errorf("%w: device id required", errs.ErrInvalidInput)
	}
	if !geo.ValidPoint(in.Lat, in.Lng) {
		return fmt.Errorf("%w: coordinates out of range", errs.ErrInvalidInput)
	}
	if in.Timezone == "" {
		return fmt.Errorf("%w: timezone required", errs.ErrInvalidInput)
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", errs.ErrInvalidInput, in.Timezone)
	}
	return nil
}

// ClaimedVoucher is a finalized voucher with its display-only expiry label.
type ClaimedVoucher struct {
	Voucher   model.Voucher
	ExpiresAt string
}

// StateResult is the derived lifecycle state plus the payload the state needs.
type StateResult struct {
	State     model.State
	Voucher   *model.Voucher // set for reroll and voucher states
	ExpiresAt string         // set for voucher state
}

// Voucher defines the lifecycle operations exposed to the transport layer.
type Voucher interface {
	// State derives the user's current lifecycle state.
	State(ctx context.Context, deviceID string) (*StateResult, error)
	// Roll assigns a random nearby discount to the user.
	Roll(ctx context.Context, in RollInput) (*model.Voucher, error)
	// Reroll swaps the pending voucher for a different nearby discount.
	Reroll(ctx context.Context, in RollInput) (*model.Voucher, error)
	// Finalize locks in the pending voucher and returns its redemption token.
	Finalize(ctx context.Context, deviceID string) (*ClaimedVoucher, error)
	// Redeem consumes a finalized voucher by token.
	Redeem(ctx context.Context, token string) (*model.Claim, error)
	// Categories lists the selectable discount categories.
	Categories(ctx context.Context) ([]string, error)
	// Stores lists stores that currently offer discounts.
	Stores(ctx context.Context) ([]model.Store, error)
}

// VoucherService implements Voucher over the repositories.
type VoucherService struct {
	users     repository.UserRepository
	discounts repository.DiscountRepository
	stores    repository.StoreRepository
	claims    repository.ClaimRepository
	cache     cache.Cache
	log       *zap.Logger

	radiusKm float64

	now  func() time.Time
	pick func(n int) int
}

// New constructs the voucher engine. radiusKm bounds the geo matcher.
func New(
	users repository.UserRepository,
	discounts repository.DiscountRepository,
	stores repository.StoreRepository,
	claims repository.ClaimRepository,
	store cache.Cache,
	logger *zap.Logger,
	radiusKm float64,
) *VoucherService {
	if radiusKm <= 0 {
		radiusKm = 2
	}
	return &VoucherService{
		users:     users,
		discounts: discounts,
		stores:    stores,
		claims:    claims,
		cache:     store,
		log:       logger,
		radiusKm:  radiusKm,
		now:       time.Now,
		pick:      rand.IntN,
	}
}

// normalizeCategory maps absent/"any" (case-insensitive) to the wildcard.
func normalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" || strings.EqualFold(c, model.CategoryAny) {
		return model.CategoryAny
	}
	return c
}

// repoCategory is the category filter passed to the store: "" means any.
func repoCategory(c string) string {
	if c == model.CategoryAny {
		return ""
	}
	return c
}

// pickCandidate narrows with the bounding box, applies the exact distance
// check and picks uniformly at random. Returns nil when nothing is eligible.
func (s *VoucherService) pickCandidate(
	ctx context.Context, lat, lng float64, category string, exclude int64,
) (*model.Candidate, error) {
	box := geo.Bounds(lat, lng, s.radiusKm)
	cands, err := s.discounts.FindCandidates(ctx, box, repoCategory(category), exclude)
	if err != nil {
		return nil, err
	}
	near := cands[:0]
	for _, c := range cands {
		if geo.DistanceKm(lat, lng, c.Store.Lat, c.Store.Lng) <= s.radiusKm {
			near = append(near, c)
		}
	}
	if len(near) == 0 {
		return nil, nil
	}
	return &near[s.pick(len(near))], nil
}

func (s *VoucherService) newClaim(userID, discountID int64, category, tz string) (*model.Claim, error) {
	token, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &model.Claim{
		UserID:     userID,
		DiscountID: discountID,
		Token:      token.String(),
		Category:   category,
		RollTime:   s.now().UTC(),
		Valid:      true,
		Timezone:   tz,
	}, nil
}

// applyConsume mirrors the committed inventory decrement on the snapshot
// returned to the caller.
func applyConsume(d *model.Discount) {
	if d.UnlimitedUse {
		return
	}
	d.Remaining--
	if d.Remaining <= 0 {
		d.Available = false
	}
}

// Roll assigns a random eligible discount to the device's user, creating the
// user on first contact. Rolling again with a voucher already on the table
// returns that same voucher.
func (s *VoucherService) Roll(ctx context.Context, in RollInput) (*model.Voucher, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByDevice(ctx, in.DeviceID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		if u, err = s.users.Create(ctx, in.DeviceID, in.Timezone); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if u.ClaimedToday {
			return nil, errs.ErrAlreadyClaimed
		}
		v, verr := s.claims.ActiveVoucher(ctx, u.ID)
		if verr == nil && v.Claim.IsPending() {
			return v, nil
		}
		if verr != nil && !errors.Is(verr, errs.ErrNotFound) {
			return nil, verr
		}
		if u.Rerolls <= 0 {
			return nil, errs.ErrNoRerolls
		}
	}

	category := normalizeCategory(in.Category)
	for attempt := 0; attempt < consumeRetries; attempt++ {
		cand, err := s.pickCandidate(ctx, in.Lat, in.Lng, category, 0)
		if err != nil {
			return nil, err
		}
		if cand == nil {
			return nil, errs.ErrNoDiscounts
		}
		claim, err := s.newClaim(u.ID, cand.Discount.ID, category, in.Timezone)
		if err != nil {
			return nil, err
		}
		if err := s.claims.Roll(ctx, claim); err != nil {
			if errors.Is(err, errs.ErrOutOfStock) {
				s.log.Warn("discount ran out between selection and consume",
					zap.Int64("discount_id", cand.Discount.ID))
				continue
			}
			// A concurrent roll for the same device won the one-valid-claim
			// index; hand back the winner's voucher instead of a second one.
			if errors.Is(err, errs.ErrAlreadyExists) {
				v, verr := s.claims.ActiveVoucher(ctx, u.ID)
				if verr != nil {
					return nil, verr
				}
				return v, nil
			}
			return nil, err
		}
		applyConsume(&cand.Discount)
		return &model.Voucher{Claim: *claim, Discount: cand.Discount, Store: cand.Store}, nil
	}
	return nil, errs.ErrNoDiscounts
}

// Reroll swaps the pending voucher for a different nearby discount. When no
// replacement exists nothing changes: the pending voucher stays claimable.
// A user out of rerolls gets their pending voucher back rather than an error.
func (s *VoucherService) Reroll(ctx context.Context, in RollInput) (*model.Voucher, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByDevice(ctx, in.DeviceID)
	if err != nil {
		return nil, err
	}
	if u.ClaimedToday {
		return nil, errs.ErrAlreadyClaimed
	}

	v, err := s.claims.ActiveVoucher(ctx, u.ID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	pending := err == nil && v.Claim.IsPending()

	if u.Rerolls <= 0 {
		if pending {
			return v, nil
		}
		return nil, errs.ErrNoRerolls
	}
	if !pending {
		return nil, errs.ErrNoActiveClaim
	}

	category := normalizeCategory(in.Category)
	for attempt := 0; attempt < consumeRetries; attempt++ {
		cand, err := s.pickCandidate(ctx, in.Lat, in.Lng, category, v.Discount.ID)
		if err != nil {
			return nil, err
		}
		if cand == nil {
			return nil, errs.ErrNoDiscounts
		}
		claim, err := s.newClaim(u.ID, cand.Discount.ID, category, in.Timezone)
		if err != nil {
			return nil, err
		}
		if err := s.claims.Reroll(ctx, v.Claim.ID, v.Discount.ID, claim); err != nil {
			if errors.Is(err, errs.ErrOutOfStock) {
				s.log.Warn("reroll target ran out between selection and consume",
					zap.Int64("discount_id", cand.Discount.ID))
				continue
			}
			return nil, err
		}
		applyConsume(&cand.Discount)
		return &model.Voucher{Claim: *claim, Discount: cand.Discount, Store: cand.Store}, nil
	}
	return nil, errs.ErrNoDiscounts
}

// Finalize locks in the pending voucher for the day and returns it with the
// redemption token and display expiry.
func (s *VoucherService) Finalize(ctx context.Context, deviceID string) (*ClaimedVoucher, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id required", errs.ErrInvalidInput)
	}
	u, err := s.users.GetByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if u.ClaimedToday {
		return nil, errs.ErrAlreadyClaimed
	}

	v, err := s.claims.ActiveVoucher(ctx, u.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNoActiveClaim
		}
		return nil, err
	}
	if !v.Claim.IsPending() {
		return nil, errs.ErrNoActiveClaim
	}

	claim, err := s.claims.Finalize(ctx, u.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	v.Claim = *claim

	label, err := cycle.DisplayExpiry(*claim.ClaimTime, claim.Timezone)
	if err != nil {
		return nil, err
	}
	cv := &ClaimedVoucher{Voucher: *v, ExpiresAt: label}

	// Best effort: lets redeem-page loads skip the DB for the display window.
	if cerr := s.cache.SetJSON(ctx, voucherCachePrefix+claim.Token, cv, cycle.DisplayExpiryWindow); cerr != nil {
		s.log.Warn("voucher cache write failed", zap.Error(cerr))
	}
	return cv, nil
}

// Redeem consumes a finalized voucher by its token, exactly once.
func (s *VoucherService) Redeem(ctx context.Context, token string) (*model.Claim, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token required", errs.ErrInvalidInput)
	}
	claim, err := s.claims.Redeem(ctx, token, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if cerr := s.cache.Delete(ctx, voucherCachePrefix+token); cerr != nil {
		s.log.Warn("voucher cache delete failed", zap.Error(cerr))
	}
	return claim, nil
}

// State derives the user's lifecycle state from the persisted claims.
func (s *VoucherService) State(ctx context.Context, deviceID string) (*StateResult, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id required", errs.ErrInvalidInput)
	}
	u, err := s.users.GetByDevice(ctx, deviceID)
	if errors.Is(err, errs.ErrNotFound) {
		return &StateResult{State: model.StateHome}, nil
	}
	if err != nil {
		return nil, err
	}

	v, err := s.claims.ActiveVoucher(ctx, u.ID)
	if errors.Is(err, errs.ErrNotFound) {
		return s.cycleState(ctx, u)
	}
	if err != nil {
		return nil, err
	}

	c := &v.Claim
	if c.IsPending() {
		return &StateResult{State: model.StateReroll, Voucher: v}, nil
	}
	if c.IsFinalized() && !c.Redeemed && c.ClaimTime != nil {
		expired, err := cycle.Expired(*c.ClaimTime, c.Timezone, s.now())
		if err != nil {
			s.log.Warn("stored timezone unusable, treating claim as expired",
				zap.String("timezone", c.Timezone), zap.Error(err))
		} else if !expired {
			label, lerr := cycle.DisplayExpiry(*c.ClaimTime, c.Timezone)
			if lerr != nil {
				return nil, lerr
			}
			return &StateResult{State: model.StateVoucher, Voucher: v, ExpiresAt: label}, nil
		}
	}
	// Conservative fallback for every other combination.
	return s.cycleState(ctx, u)
}

// cycleState resolves home vs redeemed for a user with no live voucher, and
// performs the lazy daily reset once the cycle's local midnight has passed.
func (s *VoucherService) cycleState(ctx context.Context, u *model.User) (*StateResult, error) {
	if !u.ClaimedToday {
		return &StateResult{State: model.StateHome}, nil
	}

	last, err := s.claims.LatestFinalized(ctx, u.ID)
	if errors.Is(err, errs.ErrNotFound) {
		// claimed_today with no finalized claim on record: stay conservative.
		return &StateResult{State: model.StateRedeemed}, nil
	}
	if err != nil {
		return nil, err
	}
	if last.ClaimTime == nil {
		return &StateResult{State: model.StateRedeemed}, nil
	}

	expired, err := cycle.Expired(*last.ClaimTime, last.Timezone, s.now())
	if err != nil {
		// An unloadable zone must not strand the user in redeemed forever;
		// treat the cycle as elapsed, as the voucher branch does.
		s.log.Warn("stored timezone unusable during cycle check, resetting",
			zap.String("timezone", last.Timezone), zap.Error(err))
		expired = true
	}
	if !expired {
		return &StateResult{State: model.StateRedeemed}, nil
	}

	if err := s.claims.ResetCycle(ctx, u.ID, rerollBudget); err != nil {
		return nil, err
	}
	return &StateResult{State: model.StateHome}, nil
}

// Categories returns "Any" plus the distinct categories with available
// discounts, served from cache when fresh.
func (s *VoucherService) Categories(ctx context.Context) ([]string, error) {
	var cached []string
	if ok, err := s.cache.GetJSON(ctx, categoriesCacheKey, &cached); err != nil {
		s.log.Warn("category cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	cats, err := s.discounts.Categories(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]string{"Any"}, cats...)
	if err := s.cache.SetJSON(ctx, categoriesCacheKey, out, listCacheTTL); err != nil {
		s.log.Warn("category cache write failed", zap.Error(err))
	}
	return out, nil
}

// Stores returns stores with at least one available discount, served from
// cache when fresh.
func (s *VoucherService) Stores(ctx context.Context) ([]model.Store, error) {
	var cached []model.Store
	if ok, err := s.cache.GetJSON(ctx, storesCacheKey, &cached); err != nil {
		s.log.Warn("store cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	stores, err := s.stores.ListWithAvailableDiscounts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, storesCacheKey, stores, listCacheTTL); err != nil {
		s.log.Warn("store cache write failed", zap.Error(err))
	}
	return stores, nil
}
