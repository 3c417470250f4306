// Package limit provides spending limit value types and pure functions
// for validation, monthly reset and snapshot derivation.
package limit

import (
	"fmt"
	"time"
)

// Defaults applied when a limit row is created lazily on first access.
const (
	DefaultMonthlyLimitEur   = 50.0
	DefaultAlertThresholdPct = 80.0
	MaxMonthlyLimitEur       = 10000.0
)

// SpendingLimit holds a user's configurable monthly cap and the period
// bookkeeping around it (one row per user).
//
// CurrentMonthSpentEur is a denormalized cache of the event-sum for the
// active period. The usage store is the source of truth; the cache is
// reconciled opportunistically at evaluation time.
type SpendingLimit struct {
	UserID               string
	MonthlyLimitEur      float64 // 0..10000
	AlertThresholdPct    float64 // 0..100
	HardLimit            bool    // true = block AI operations once the cap is reached
	CurrentMonthSpentEur float64
	LastResetAt          time.Time
	AlertSentAt          *time.Time
	LimitHitAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Default returns the limit created on a user's first access.
func Default(userID string, now time.Time) SpendingLimit {
	return SpendingLimit{
		UserID:            userID,
		MonthlyLimitEur:   DefaultMonthlyLimitEur,
		AlertThresholdPct: DefaultAlertThresholdPct,
		HardLimit:         false,
		LastResetAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Update is a partial limit change. Nil fields are left untouched.
type Update struct {
	MonthlyLimitEur   *float64
	AlertThresholdPct *float64
	HardLimit         *bool
}

// ValidationError reports an out-of-range update field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("limit: invalid %s: %s", e.Field, e.Reason)
}

// Validate checks update ranges.
func (u Update) Validate() error {
	if u.MonthlyLimitEur != nil {
		if *u.MonthlyLimitEur < 0 || *u.MonthlyLimitEur > MaxMonthlyLimitEur {
			return &ValidationError{Field: "monthlyLimitEur", Reason: fmt.Sprintf("must be between 0 and %g", MaxMonthlyLimitEur)}
		}
	}
	if u.AlertThresholdPct != nil {
		if *u.AlertThresholdPct < 0 || *u.AlertThresholdPct > 100 {
			return &ValidationError{Field: "alertThreshold", Reason: "must be between 0 and 100"}
		}
	}
	return nil
}

// Apply returns l with the update applied. Raising the monthly limit
// clears AlertSentAt and LimitHitAt: the user acted to relax the
// constraint, so stale warnings must not persist. Lowering it does not.
// This is a PURE function.
func Apply(l SpendingLimit, u Update, now time.Time) SpendingLimit {
	if u.MonthlyLimitEur != nil {
		if *u.MonthlyLimitEur > l.MonthlyLimitEur {
			l.AlertSentAt = nil
			l.LimitHitAt = nil
		}
		l.MonthlyLimitEur = *u.MonthlyLimitEur
	}
	if u.AlertThresholdPct != nil {
		l.AlertThresholdPct = *u.AlertThresholdPct
	}
	if u.HardLimit != nil {
		l.HardLimit = *u.HardLimit
	}
	l.UpdatedAt = now
	return l
}

// NeedsReset reports whether a calendar-month boundary has been crossed
// since the limit was last reset. The comparison is monotonic, so
// concurrent callers converge on the same answer.
// This is a PURE function.
func NeedsReset(now, lastResetAt time.Time) bool {
	return now.Year() != lastResetAt.Year() || now.Month() != lastResetAt.Month()
}

// Reset returns l with the monthly fields zeroed for a new period.
// This is a PURE function.
func Reset(l SpendingLimit, now time.Time) SpendingLimit {
	l.CurrentMonthSpentEur = 0
	l.LastResetAt = now
	l.AlertSentAt = nil
	l.LimitHitAt = nil
	l.UpdatedAt = now
	return l
}
