package usage

import (
	"errors"
	"math"
	"time"
)

// Default conversion factors. The margin covers resale markup on raw
// provider cost before the USD amount is converted to the user-facing
// EUR figure.
const (
	DefaultMargin   = 1.30
	DefaultUSDToEUR = 0.92
)

// Pricing converts raw provider cost (USD) to the user-facing EUR figure.
type Pricing struct {
	Margin   float64 // Markup multiplier, must be >= 1
	USDToEUR float64 // Fixed conversion rate, must be > 0
}

// DefaultPricing returns the standard pricing factors.
func DefaultPricing() Pricing {
	return Pricing{Margin: DefaultMargin, USDToEUR: DefaultUSDToEUR}
}

// Pricing validation errors.
var (
	ErrMarginTooLow = errors.New("usage: margin must be >= 1")
	ErrInvalidRate  = errors.New("usage: usd-to-eur rate must be > 0")
)

// Validate checks that pricing factors are sane.
func (p Pricing) Validate() error {
	if p.Margin < 1 {
		return ErrMarginTooLow
	}
	if p.USDToEUR <= 0 {
		return ErrInvalidRate
	}
	return nil
}

// ToEUR converts a raw USD cost to the EUR amount charged against the
// user's budget, rounded to cents for display consistency.
// This is a PURE function.
func (p Pricing) ToEUR(costUSD float64) float64 {
	return RoundCents(costUSD * p.Margin * p.USDToEUR)
}

// RoundCents rounds to two decimals, half away from zero.
// This is a PURE function.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// SumSuccessfulUSD sums the USD cost of successful events. Failed
// operations are metered but never billed. Order-independent.
// This is a PURE function.
func SumSuccessfulUSD(events []Event) float64 {
	var total float64
	for _, e := range events {
		if e.Success {
			total += e.CostUSD
		}
	}
	return total
}

// PeriodBounds returns the start and end of the calendar-month billing
// period containing t, in t's location (the server reference timezone).
// This is a PURE function.
func PeriodBounds(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return
}
