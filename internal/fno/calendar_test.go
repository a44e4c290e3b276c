package fno

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeCalendarFile(t *testing.T, path string) {
	t.Helper()
	doc := map[string]interface{}{
		"underlyings": map[string]interface{}{
			"NIFTY": map[string]interface{}{
				"strike_step": "50",
				"expiries": map[string][]string{
					"W": {"2026-08-06T00:00:00Z", "2026-08-13T00:00:00Z"},
					"M": {"2026-08-27T00:00:00Z"},
				},
			},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCalendarMissingFileIsEmpty(t *testing.T) {
	c, err := LoadCalendar(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if !c.StrikeStep("NIFTY").IsZero() {
		t.Fatal("expected zero strike step for unknown underlying")
	}
}

func TestLoadCalendarNthExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.json")
	writeCalendarFile(t, path)

	c, err := LoadCalendar(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := c.StrikeStep("NIFTY"); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected strike step 50, got %s", got)
	}

	ref := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	first, err := c.NthExpiry("NIFTY", BucketWeekly, 0, ref)
	if err != nil {
		t.Fatalf("NthExpiry: %v", err)
	}
	if !first.Equal(time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first weekly expiry: %s", first)
	}

	second, err := c.NthExpiry("NIFTY", BucketWeekly, 1, ref)
	if err != nil {
		t.Fatalf("NthExpiry: %v", err)
	}
	if !second.Equal(time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected second weekly expiry: %s", second)
	}

	if _, err := c.NthExpiry("NIFTY", BucketWeekly, 5, ref); err == nil {
		t.Fatal("expected error for out-of-range n")
	}

	if _, err := c.NthExpiry("UNKNOWN", BucketWeekly, 0, ref); err == nil {
		t.Fatal("expected error for unknown underlying")
	}
}
