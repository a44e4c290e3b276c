package fno

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeCalendar struct {
	expiry time.Time
	step   decimal.Decimal
}

func (c fakeCalendar) NthExpiry(base string, bucket Bucket, n int, referenceDate time.Time) (time.Time, error) {
	return c.expiry, nil
}

func (c fakeCalendar) StrikeStep(base string) decimal.Decimal { return c.step }

type fakeSpot map[string]decimal.Decimal

func (s fakeSpot) UnderlyingLTP(base string) (decimal.Decimal, bool) {
	v, ok := s[base]
	return v, ok
}

func TestResolveFuture(t *testing.T) {
	r := NewResolver(fakeCalendar{expiry: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)}, fakeSpot{})
	got, err := r.Resolve("NIFTY:M0", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got != "NIFTY:2026-08-27:FUT" {
		t.Fatalf("unexpected resolution: %s", got)
	}
}

func TestResolveATMOption(t *testing.T) {
	r := NewResolver(
		fakeCalendar{expiry: time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC), step: decimal.NewFromInt(50)},
		fakeSpot{"NIFTY": decimal.NewFromInt(25130)},
	)
	got, err := r.Resolve("NIFTY:W0:ATM:CE", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got != "NIFTY:2026-08-06:OPT:25150:CE" {
		t.Fatalf("unexpected resolution: %s", got)
	}
}

func TestResolveOTMCallAboveITMPutAbove(t *testing.T) {
	cal := fakeCalendar{expiry: time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC), step: decimal.NewFromInt(50)}
	spot := fakeSpot{"NIFTY": decimal.NewFromInt(25000)}
	r := NewResolver(cal, spot)

	otmCall, err := r.Resolve("NIFTY:W0:OTM2:CE", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if otmCall != "NIFTY:2026-08-06:OPT:25100:CE" {
		t.Fatalf("expected OTM call above spot, got %s", otmCall)
	}

	itmPut, err := r.Resolve("NIFTY:W0:ITM2:PE", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if itmPut != "NIFTY:2026-08-06:OPT:25100:PE" {
		t.Fatalf("expected ITM put above spot, got %s", itmPut)
	}
}

func TestResolveCachesPerDynamicSymbolAndDate(t *testing.T) {
	calls := 0
	cal := countingCalendar{fakeCalendar{expiry: time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC), step: decimal.NewFromInt(50)}, &calls}
	r := NewResolver(cal, fakeSpot{"NIFTY": decimal.NewFromInt(25000)})

	ref := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if _, err := r.Resolve("NIFTY:W0:ATM:CE", ref); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve("NIFTY:W0:ATM:CE", ref); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected calendar consulted once due to caching, got %d", calls)
	}
}

type countingCalendar struct {
	fakeCalendar
	calls *int
}

func (c countingCalendar) NthExpiry(base string, bucket Bucket, n int, referenceDate time.Time) (time.Time, error) {
	*c.calls++
	return c.fakeCalendar.expiry, nil
}

func TestIsDynamicDetection(t *testing.T) {
	if !IsDynamic("NIFTY:W0:ATM:CE") {
		t.Fatal("expected dynamic symbol to be detected")
	}
	if IsDynamic("NIFTY:2026-08-06:OPT:25000:CE") {
		t.Fatal("expected concrete contract to not be detected as dynamic")
	}
	if IsDynamic("RELIANCE") {
		t.Fatal("expected plain equity symbol to not be dynamic")
	}
}
