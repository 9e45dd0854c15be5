package cycle

import (
	"testing"
	"time"
)

const sydney = "Australia/Sydney"

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load zone %s: %v", name, err)
	}
	return loc
}

func TestNextLocalMidnight(t *testing.T) {
	loc := mustZone(t, sydney)

	claim := time.Date(2026, 3, 14, 15, 30, 0, 0, loc)
	mid, err := NextLocalMidnight(claim.UTC(), sydney)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, loc)
	if !mid.Equal(want) {
		t.Fatalf("midnight = %v, want %v", mid, want)
	}
}

func TestNextLocalMidnight_UnknownZone(t *testing.T) {
	if _, err := NextLocalMidnight(time.Now(), "Not/AZone"); err == nil {
		t.Fatal("want error for unknown zone")
	}
}

func TestExpired_JustBeforeAndAfterMidnight(t *testing.T) {
	loc := mustZone(t, sydney)

	// Finalized at 23:59:59 local: expires one second later.
	claim := time.Date(2026, 3, 14, 23, 59, 59, 0, loc)

	expired, err := Expired(claim.UTC(), sydney, claim.Add(500*time.Millisecond).UTC())
	if err != nil {
		t.Fatal(err)
	}
	if expired {
		t.Fatal("voucher expired before local midnight")
	}

	expired, err = Expired(claim.UTC(), sydney, claim.Add(time.Second).UTC())
	if err != nil {
		t.Fatal(err)
	}
	if !expired {
		t.Fatal("voucher still valid at local midnight")
	}
}

func TestExpired_EarlyClaimLastsAllDay(t *testing.T) {
	loc := mustZone(t, sydney)

	// Finalized at 00:00:01 local: valid for the rest of that day.
	claim := time.Date(2026, 3, 14, 0, 0, 1, 0, loc)

	atEvening := time.Date(2026, 3, 14, 23, 59, 59, 0, loc)
	expired, err := Expired(claim.UTC(), sydney, atEvening.UTC())
	if err != nil {
		t.Fatal(err)
	}
	if expired {
		t.Fatal("voucher expired before end of claim day")
	}

	nextDay := time.Date(2026, 3, 15, 0, 0, 0, 0, loc)
	expired, err = Expired(claim.UTC(), sydney, nextDay.UTC())
	if err != nil {
		t.Fatal(err)
	}
	if !expired {
		t.Fatal("voucher survived its midnight boundary")
	}
}

func TestExpired_CapturedZoneNotCallerZone(t *testing.T) {
	// The boundary must follow the zone captured at roll time regardless of
	// where "now" is expressed.
	loc := mustZone(t, sydney)
	claim := time.Date(2026, 3, 14, 22, 0, 0, 0, loc)

	nowUTC := time.Date(2026, 3, 14, 14, 30, 0, 0, time.UTC) // 01:30 on the 15th in Sydney
	expired, err := Expired(claim.UTC(), sydney, nowUTC)
	if err != nil {
		t.Fatal(err)
	}
	if !expired {
		t.Fatal("expiry did not follow the captured zone")
	}
}

func TestDisplayExpiry(t *testing.T) {
	loc := mustZone(t, sydney)
	claim := time.Date(2026, 3, 14, 21, 5, 0, 0, loc)

	got, err := DisplayExpiry(claim.UTC(), sydney)
	if err != nil {
		t.Fatal(err)
	}
	if got != "16 Mar 2026, 09:05 PM" {
		t.Fatalf("display expiry = %q", got)
	}
}
