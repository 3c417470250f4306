package usage_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/glowdesk/aimeter/domain/usage"
)

func TestPricingValidate(t *testing.T) {
	if err := usage.DefaultPricing().Validate(); err != nil {
		t.Errorf("DefaultPricing().Validate() = %v, want nil", err)
	}
	if err := (usage.Pricing{Margin: 0.9, USDToEUR: 0.92}).Validate(); !errors.Is(err, usage.ErrMarginTooLow) {
		t.Errorf("Validate() with margin 0.9 = %v, want ErrMarginTooLow", err)
	}
	if err := (usage.Pricing{Margin: 1.3, USDToEUR: 0}).Validate(); !errors.Is(err, usage.ErrInvalidRate) {
		t.Errorf("Validate() with rate 0 = %v, want ErrInvalidRate", err)
	}
}

func TestToEUR_DefaultFactors(t *testing.T) {
	p := usage.DefaultPricing()

	// 10 USD * 1.30 * 0.92 = 11.96 EUR
	got := p.ToEUR(10)
	if got != 11.96 {
		t.Errorf("ToEUR(10) = %v, want 11.96", got)
	}

	if got := p.ToEUR(0); got != 0 {
		t.Errorf("ToEUR(0) = %v, want 0", got)
	}
}

func TestToEUR_RoundsToCents(t *testing.T) {
	p := usage.DefaultPricing()

	got := p.ToEUR(0.0123)
	if got != 0.01 {
		t.Errorf("ToEUR(0.0123) = %v, want 0.01", got)
	}

	// Result must always have at most 2 decimals.
	cents := got * 100
	if cents != math.Trunc(cents) {
		t.Errorf("ToEUR result %v is not cent-aligned", got)
	}
}

func TestRoundCents(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.0}, // 1.005 is stored as slightly below 1.005
		{1.015, 1.01},
		{1.016, 1.02},
		{-1.016, -1.02},
		{0, 0},
	}
	for _, c := range cases {
		if got := usage.RoundCents(c.in); got != c.want {
			t.Errorf("RoundCents(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSumSuccessfulUSD_SkipsFailures(t *testing.T) {
	events := []usage.Event{
		{CostUSD: 1.5, Success: true},
		{CostUSD: 2.0, Success: false},
		{CostUSD: 0.5, Success: true},
	}

	got := usage.SumSuccessfulUSD(events)
	if got != 2.0 {
		t.Errorf("SumSuccessfulUSD = %v, want 2.0", got)
	}
}

func TestSumSuccessfulUSD_OrderIndependent(t *testing.T) {
	a := []usage.Event{
		{CostUSD: 0.1, Success: true},
		{CostUSD: 0.2, Success: true},
		{CostUSD: 0.3, Success: true},
	}
	b := []usage.Event{a[2], a[0], a[1]}

	if usage.SumSuccessfulUSD(a) != usage.SumSuccessfulUSD(b) {
		t.Errorf("sum depends on event order: %v vs %v",
			usage.SumSuccessfulUSD(a), usage.SumSuccessfulUSD(b))
	}
}

func TestSumSuccessfulUSD_Empty(t *testing.T) {
	if got := usage.SumSuccessfulUSD(nil); got != 0 {
		t.Errorf("SumSuccessfulUSD(nil) = %v, want 0", got)
	}
}

func TestPeriodBounds(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	start, end := usage.PeriodBounds(now)

	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}

	wantEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestPeriodBounds_December(t *testing.T) {
	now := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	start, end := usage.PeriodBounds(now)

	if start.Month() != time.December || start.Year() != 2026 {
		t.Errorf("start = %v, want December 2026", start)
	}
	if end.Before(now) {
		t.Errorf("end %v is before now %v", end, now)
	}
	if end.Year() != 2026 {
		t.Errorf("end = %v, should still be in 2026", end)
	}
}

func TestPeriodBounds_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	now := time.Date(2026, 6, 10, 8, 0, 0, 0, loc)
	start, _ := usage.PeriodBounds(now)

	if start.Location() != loc {
		t.Errorf("start location = %v, want %v", start.Location(), loc)
	}
	if start.Hour() != 0 {
		t.Errorf("start hour = %d, want 0 in local time", start.Hour())
	}
}
