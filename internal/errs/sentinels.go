// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrInvalidInput indicates a malformed request rejected before touching state.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., device already registered).
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyClaimed indicates the user has already locked in a voucher this cycle.
	ErrAlreadyClaimed = errors.New("already claimed today")

	// ErrNoRerolls indicates the per-cycle reroll budget is exhausted.
	ErrNoRerolls = errors.New("no rerolls left")

	// ErrNoActiveClaim indicates there is no pending claim to act on.
	ErrNoActiveClaim = errors.New("no active claim")

	// ErrNoDiscounts indicates no eligible discount exists for the location/category.
	ErrNoDiscounts = errors.New("no discounts available")

	// ErrOutOfStock indicates the inventory re-check failed: the discount ran out
	// between candidate selection and the consuming transaction.
	ErrOutOfStock = errors.New("discount out of stock")

	// ErrAlreadyRedeemed indicates a second redemption attempt on the same token.
	ErrAlreadyRedeemed = errors.New("already redeemed")

	// ErrExpired indicates the claim is no longer valid (expired or superseded).
	ErrExpired = errors.New("voucher expired or invalid")

	// ErrRateLimited indicates the client exceeded a request rate limit.
	ErrRateLimited = errors.New("rate limited")
)
