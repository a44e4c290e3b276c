// Package fno resolves dynamic futures-and-options symbols such as
// NIFTY:W0:ATM:CE against an expiry calendar and the current spot price.
package fno

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpiryCalendar answers "what is the Nth upcoming weekly/monthly/quarterly/
// yearly expiry for this underlying, as of this reference date" and "what
// is this underlying's strike step". It is read-only and shared across
// every session (§5's shared-resource policy).
type ExpiryCalendar interface {
	NthExpiry(base string, bucket Bucket, n int, referenceDate time.Time) (time.Time, error)
	StrikeStep(base string) decimal.Decimal
}

// Bucket is the expiry cadence a code like W0/M1/Q0/Y1 names.
type Bucket string

const (
	BucketWeekly    Bucket = "W"
	BucketMonthly   Bucket = "M"
	BucketQuarterly Bucket = "Q"
	BucketYearly    Bucket = "Y"
)

// SpotSource supplies the underlying's current price for ATM/OTM/ITM strike
// resolution. The LTP store implements this for the underlying symbol.
type SpotSource interface {
	UnderlyingLTP(base string) (decimal.Decimal, bool)
}

type cacheKey struct {
	symbol string
	date   string
}

// Resolver resolves and caches dynamic symbol -> concrete contract lookups.
// One Resolver is owned by exactly one session, consistent with the rest of
// the engine's no-shared-mutable-state policy; only the ExpiryCalendar
// underneath it is cross-session shared (and is itself read-only).
type Resolver struct {
	calendar ExpiryCalendar
	spot     SpotSource
	cache    map[cacheKey]string
}

// NewResolver constructs a Resolver backed by calendar for expiry/strike-step
// lookups and spot for ATM/OTM/ITM strike selection.
func NewResolver(calendar ExpiryCalendar, spot SpotSource) *Resolver {
	return &Resolver{calendar: calendar, spot: spot, cache: make(map[cacheKey]string)}
}

// IsDynamic reports whether symbol uses the dynamic BASE:<EXP>[...] grammar
// rather than naming a concrete contract directly.
func IsDynamic(symbol string) bool {
	parts := strings.Split(symbol, ":")
	if len(parts) < 2 {
		return false
	}
	return parseExpiryCode(parts[1]) != nil
}

type expiryCode struct {
	bucket Bucket
	n      int
}

func parseExpiryCode(s string) *expiryCode {
	if len(s) < 2 {
		return nil
	}
	bucket := Bucket(s[:1])
	switch bucket {
	case BucketWeekly, BucketMonthly, BucketQuarterly, BucketYearly:
	default:
		return nil
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return nil
	}
	return &expiryCode{bucket: bucket, n: n}
}

// Resolve maps a dynamic symbol like "NIFTY:W0:ATM:CE" or "NIFTY:M1" (a
// future) to a concrete contract key, as of referenceDate. Results are
// cached per (dynamic_symbol, reference_date).
func (r *Resolver) Resolve(symbol string, referenceDate time.Time) (string, error) {
	key := cacheKey{symbol: symbol, date: referenceDate.Format("2006-01-02")}
	if v, ok := r.cache[key]; ok {
		return v, nil
	}

	parts := strings.Split(symbol, ":")
	if len(parts) < 2 {
		return "", fmt.Errorf("fno: %q is not a dynamic symbol", symbol)
	}
	base := parts[0]
	code := parseExpiryCode(parts[1])
	if code == nil {
		return "", fmt.Errorf("fno: unrecognized expiry code %q", parts[1])
	}

	expiry, err := r.calendar.NthExpiry(base, code.bucket, code.n, referenceDate)
	if err != nil {
		return "", fmt.Errorf("fno: resolve expiry for %s: %w", symbol, err)
	}
	expiryStr := expiry.Format("2006-01-02")

	// BASE:<EXP> alone (no strike selector / option type) names a future.
	if len(parts) == 2 {
		resolved := fmt.Sprintf("%s:%s:FUT", base, expiryStr)
		r.cache[key] = resolved
		return resolved, nil
	}
	if len(parts) != 4 {
		return "", fmt.Errorf("fno: malformed dynamic option symbol %q", symbol)
	}
	strikeSelector := parts[2]
	optionType := parts[3]
	if optionType != "CE" && optionType != "PE" {
		return "", fmt.Errorf("fno: unrecognized option type %q", optionType)
	}

	strike, err := r.resolveStrike(base, strikeSelector, optionType)
	if err != nil {
		return "", err
	}
	resolved := fmt.Sprintf("%s:%s:OPT:%s:%s", base, expiryStr, strike.String(), optionType)
	r.cache[key] = resolved
	return resolved, nil
}

// resolveStrike computes the strike for ATM / OTM<N> / ITM<N> selectors.
// OTM/ITM direction depends on option type: for calls, OTM is above spot and
// ITM is below; for puts it is the reverse.
func (r *Resolver) resolveStrike(base, selector, optionType string) (decimal.Decimal, error) {
	spot, ok := r.spot.UnderlyingLTP(base)
	if !ok {
		return decimal.Zero, fmt.Errorf("fno: no spot price available for %s", base)
	}
	step := r.calendar.StrikeStep(base)
	if step.IsZero() {
		return decimal.Zero, fmt.Errorf("fno: strike step not configured for %s", base)
	}
	atm := roundToStep(spot, step)

	if selector == "ATM" {
		return atm, nil
	}

	var sign int
	var n int
	switch {
	case strings.HasPrefix(selector, "OTM"):
		n64, err := strconv.Atoi(strings.TrimPrefix(selector, "OTM"))
		if err != nil {
			return decimal.Zero, fmt.Errorf("fno: invalid strike selector %q", selector)
		}
		n = n64
		if optionType == "CE" {
			sign = 1
		} else {
			sign = -1
		}
	case strings.HasPrefix(selector, "ITM"):
		n64, err := strconv.Atoi(strings.TrimPrefix(selector, "ITM"))
		if err != nil {
			return decimal.Zero, fmt.Errorf("fno: invalid strike selector %q", selector)
		}
		n = n64
		if optionType == "CE" {
			sign = -1
		} else {
			sign = 1
		}
	default:
		return decimal.Zero, fmt.Errorf("fno: unrecognized strike selector %q", selector)
	}

	offset := step.Mul(decimal.NewFromInt(int64(n * sign)))
	return atm.Add(offset), nil
}

func roundToStep(v, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	quotient := v.Div(step).Round(0)
	return quotient.Mul(step)
}
