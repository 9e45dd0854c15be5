// Package cycle computes the daily-cycle boundaries for claims: the local
// midnight that expires a finalized voucher, and the longer display-only
// expiry shown next to the redemption code.
//
// The two windows intentionally disagree: the state machine cuts a voucher
// off at the next local midnight (up to ~24h), while the label shown to the
// user advertises claim time + 48h. Both come from the captured timezone of
// the claim, never from a live lookup.
package cycle

import (
	"time"
)

// DisplayExpiryWindow is how long the voucher label advertises the token as
// usable. It is display-only; NextLocalMidnight governs the state machine.
const DisplayExpiryWindow = 48 * time.Hour

// displayTimeLayout renders e.g. "14 Mar 2026, 09:05 PM".
const displayTimeLayout = "02 Jan 2006, 03:04 PM"

// NextLocalMidnight returns the midnight in zone tz strictly after t.
func NextLocalMidnight(t time.Time, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	lt := t.In(loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1), nil
}

// Expired reports whether a claim finalized at claimTime has crossed its
// local midnight boundary as of now.
func Expired(claimTime time.Time, tz string, now time.Time) (bool, error) {
	midnight, err := NextLocalMidnight(claimTime, tz)
	if err != nil {
		return false, err
	}
	return !now.Before(midnight), nil
}

// DisplayExpiry formats claimTime + DisplayExpiryWindow in the claim's zone
// for the "expires at" label.
func DisplayExpiry(claimTime time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return claimTime.Add(DisplayExpiryWindow).In(loc).Format(displayTimeLayout), nil
}
