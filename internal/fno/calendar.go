package fno

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// calendarFile is the on-disk shape of a Calendar's backing JSON, keyed by
// underlying base symbol (e.g. "NIFTY"). Expiries lists every known expiry
// date for that bucket, in any order; Calendar sorts them once on load.
type calendarFile struct {
	Underlyings map[string]struct {
		StrikeStep decimal.Decimal        `json:"strike_step"`
		Expiries   map[Bucket][]time.Time `json:"expiries"`
	} `json:"underlyings"`
}

type underlyingEntry struct {
	strikeStep decimal.Decimal
	expiries   map[Bucket][]time.Time // ascending
}

// Calendar is a file-backed ExpiryCalendar: a static table of known expiry
// dates and strike steps per underlying, loaded once and shared read-only
// across every session per §5's shared-resource policy. Grounded on
// internal/data.Store's load pattern (os.ReadFile, json.Unmarshal into a
// map guarded by sync.RWMutex), adapted from tick files to expiry tables.
type Calendar struct {
	mu          sync.RWMutex
	underlyings map[string]underlyingEntry
}

// LoadCalendar reads path as JSON and builds a Calendar. A missing file is
// not an error: it yields an empty Calendar, so a session whose strategy
// never touches F&O symbols never needs one.
func LoadCalendar(path string) (*Calendar, error) {
	c := &Calendar{underlyings: make(map[string]underlyingEntry)}
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("fno: read calendar %s: %w", path, err)
	}

	var file calendarFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("fno: parse calendar %s: %w", path, err)
	}

	for base, entry := range file.Underlyings {
		sorted := make(map[Bucket][]time.Time, len(entry.Expiries))
		for bucket, dates := range entry.Expiries {
			cp := append([]time.Time(nil), dates...)
			sort.Slice(cp, func(i, j int) bool { return cp[i].Before(cp[j]) })
			sorted[bucket] = cp
		}
		c.underlyings[base] = underlyingEntry{strikeStep: entry.StrikeStep, expiries: sorted}
	}
	return c, nil
}

// NthExpiry returns the (n+1)th expiry in bucket on or after referenceDate,
// n being 0-indexed as in the W0/M0/Q0/Y0 symbol grammar.
func (c *Calendar) NthExpiry(base string, bucket Bucket, n int, referenceDate time.Time) (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.underlyings[base]
	if !ok {
		return time.Time{}, fmt.Errorf("fno: no calendar entry for %s", base)
	}
	dates := entry.expiries[bucket]

	upcoming := dates[:0:0]
	for _, d := range dates {
		if !d.Before(referenceDate) {
			upcoming = append(upcoming, d)
		}
	}
	if n < 0 || n >= len(upcoming) {
		return time.Time{}, fmt.Errorf("fno: no %s expiry #%d for %s on or after %s", bucket, n, base, referenceDate.Format("2006-01-02"))
	}
	return upcoming[n], nil
}

// StrikeStep returns the configured strike spacing for base, or zero if the
// underlying has no calendar entry.
func (c *Calendar) StrikeStep(base string) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.underlyings[base].strikeStep
}
