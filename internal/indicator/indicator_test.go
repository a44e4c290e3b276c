package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSMANotReadyBeforeWarmup(t *testing.T) {
	s := NewSMA(3)
	if _, ready := s.Update(dec("1")); ready {
		t.Fatal("expected not ready after 1 value")
	}
	if _, ready := s.Update(dec("2")); ready {
		t.Fatal("expected not ready after 2 values")
	}
	v, ready := s.Update(dec("3"))
	if !ready {
		t.Fatal("expected ready after 3 values")
	}
	if !v.Equal(dec("2")) {
		t.Fatalf("expected mean 2, got %s", v)
	}
}

func TestSMASlidesWindow(t *testing.T) {
	s := NewSMA(2)
	s.Update(dec("10"))
	s.Update(dec("20"))
	v, ready := s.Update(dec("30"))
	if !ready || !v.Equal(dec("25")) {
		t.Fatalf("expected mean 25, got %s ready=%v", v, ready)
	}
}

func TestEMASeedsFromSMA(t *testing.T) {
	e := NewEMA(3)
	for _, c := range []string{"1", "2", "3"} {
		e.Update(dec(c))
	}
	v, ready := e.Value()
	if !ready || !v.Equal(dec("2")) {
		t.Fatalf("expected seed value 2, got %s ready=%v", v, ready)
	}
	v, ready = e.Update(dec("4"))
	if !ready {
		t.Fatal("expected ready after seed")
	}
	// multiplier = 2/4 = 0.5; ema = (4-2)*0.5+2 = 3
	if !v.Equal(dec("3")) {
		t.Fatalf("expected ema 3, got %s", v)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	r := NewRSI(3)
	closes := []string{"1", "2", "3", "4", "5"}
	var v decimal.Decimal
	var ready bool
	for _, c := range closes {
		v, ready = r.Update(dec(c))
	}
	if !ready {
		t.Fatal("expected ready")
	}
	if !v.Equal(dec("100")) {
		t.Fatalf("expected RSI 100 for all gains, got %s", v)
	}
}

func TestRSINotReadyDuringWarmup(t *testing.T) {
	r := NewRSI(3)
	if _, ready := r.Update(dec("1")); ready {
		t.Fatal("expected not ready on first close (no prior close)")
	}
	if _, ready := r.Update(dec("2")); ready {
		t.Fatal("expected not ready before period+1 closes")
	}
}
