package limit_test

import (
	"testing"
	"time"

	"github.com/glowdesk/aimeter/domain/limit"
)

var (
	periodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
)

func baseLimit() limit.SpendingLimit {
	l := limit.Default("user-1", periodStart)
	l.MonthlyLimitEur = 50
	l.AlertThresholdPct = 80
	return l
}

func TestEvaluate_TypicalMonth(t *testing.T) {
	// 42 EUR spent against a 50 EUR limit with 10 EUR included credits.
	snap := limit.Evaluate(baseLimit(), 42, 10, periodStart, periodEnd)

	if snap.PercentUsed != 84 {
		t.Errorf("PercentUsed = %v, want 84", snap.PercentUsed)
	}
	if !snap.IsNearLimit {
		t.Errorf("IsNearLimit = false, want true (84%% >= 80%%)")
	}
	if snap.HasHitLimit {
		t.Errorf("HasHitLimit = true, want false (soft limit)")
	}
	if snap.IncludedCreditsUsedEur != 10 {
		t.Errorf("IncludedCreditsUsedEur = %v, want 10", snap.IncludedCreditsUsedEur)
	}
	if snap.IncludedCreditsRemainingEur != 0 {
		t.Errorf("IncludedCreditsRemainingEur = %v, want 0", snap.IncludedCreditsRemainingEur)
	}
	if snap.ExtraUsageChargedEur != 32 {
		t.Errorf("ExtraUsageChargedEur = %v, want 32", snap.ExtraUsageChargedEur)
	}
	if snap.RemainingEur != 8 {
		t.Errorf("RemainingEur = %v, want 8", snap.RemainingEur)
	}
}

func TestEvaluate_UnderCredits(t *testing.T) {
	snap := limit.Evaluate(baseLimit(), 5, 10, periodStart, periodEnd)

	if snap.IncludedCreditsUsedEur != 5 {
		t.Errorf("IncludedCreditsUsedEur = %v, want 5", snap.IncludedCreditsUsedEur)
	}
	if snap.IncludedCreditsRemainingEur != 5 {
		t.Errorf("IncludedCreditsRemainingEur = %v, want 5", snap.IncludedCreditsRemainingEur)
	}
	if snap.ExtraUsageChargedEur != 0 {
		t.Errorf("ExtraUsageChargedEur = %v, want 0", snap.ExtraUsageChargedEur)
	}
	if snap.IsNearLimit {
		t.Errorf("IsNearLimit = true, want false at 10%%")
	}
}

func TestEvaluate_OverspendBeyondLimit(t *testing.T) {
	// Spend past 100%: display clamps, flags do not.
	l := baseLimit()
	l.HardLimit = true
	snap := limit.Evaluate(l, 75, 0, periodStart, periodEnd)

	if snap.PercentUsed != 100 {
		t.Errorf("PercentUsed = %v, want 100 (clamped)", snap.PercentUsed)
	}
	if snap.PercentUsedRaw != 150 {
		t.Errorf("PercentUsedRaw = %v, want 150", snap.PercentUsedRaw)
	}
	if !snap.HasHitLimit {
		t.Errorf("HasHitLimit = false, want true at 150%%")
	}
	if snap.RemainingEur != 0 {
		t.Errorf("RemainingEur = %v, want 0", snap.RemainingEur)
	}
}

func TestEvaluate_ExactlyAtLimit(t *testing.T) {
	l := baseLimit()
	l.HardLimit = true
	snap := limit.Evaluate(l, 50, 0, periodStart, periodEnd)

	if !snap.HasHitLimit {
		t.Errorf("HasHitLimit = false, want true at exactly 100%%")
	}
	if !snap.IsNearLimit {
		t.Errorf("IsNearLimit = false, want true at 100%%")
	}
}

func TestEvaluate_SoftLimitNeverHits(t *testing.T) {
	snap := limit.Evaluate(baseLimit(), 500, 0, periodStart, periodEnd)

	if snap.HasHitLimit {
		t.Errorf("HasHitLimit = true, want false for soft limit at any spend")
	}
}

func TestEvaluate_ZeroLimit(t *testing.T) {
	l := baseLimit()
	l.MonthlyLimitEur = 0
	l.HardLimit = true
	snap := limit.Evaluate(l, 10, 0, periodStart, periodEnd)

	if snap.PercentUsedRaw != 0 {
		t.Errorf("PercentUsedRaw = %v, want 0 for zero limit (no division)", snap.PercentUsedRaw)
	}
	if snap.HasHitLimit {
		t.Errorf("HasHitLimit = true, want false for zero limit")
	}
	if snap.RemainingEur != 0 {
		t.Errorf("RemainingEur = %v, want 0", snap.RemainingEur)
	}
}

func TestEvaluate_ZeroSpend(t *testing.T) {
	snap := limit.Evaluate(baseLimit(), 0, 10, periodStart, periodEnd)

	if snap.PercentUsed != 0 {
		t.Errorf("PercentUsed = %v, want 0", snap.PercentUsed)
	}
	if snap.RemainingEur != 50 {
		t.Errorf("RemainingEur = %v, want 50", snap.RemainingEur)
	}
	if snap.IncludedCreditsRemainingEur != 10 {
		t.Errorf("IncludedCreditsRemainingEur = %v, want 10", snap.IncludedCreditsRemainingEur)
	}
}

func TestEvaluate_ThresholdZeroAlwaysNear(t *testing.T) {
	l := baseLimit()
	l.AlertThresholdPct = 0
	snap := limit.Evaluate(l, 0, 0, periodStart, periodEnd)

	if !snap.IsNearLimit {
		t.Errorf("IsNearLimit = false, want true with threshold 0 (0%% >= 0%%)")
	}
}

func TestEvaluate_CarriesPeriod(t *testing.T) {
	snap := limit.Evaluate(baseLimit(), 1, 0, periodStart, periodEnd)

	if !snap.PeriodStart.Equal(periodStart) || !snap.PeriodEnd.Equal(periodEnd) {
		t.Errorf("period = [%v, %v], want [%v, %v]",
			snap.PeriodStart, snap.PeriodEnd, periodStart, periodEnd)
	}
}
