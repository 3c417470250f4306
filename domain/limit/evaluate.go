package limit

import "time"

// Snapshot is the computed usage/limit state for a user (never persisted).
//
// PercentUsedRaw is the unclamped ratio and drives the IsNearLimit and
// HasHitLimit flags; PercentUsed is clamped to [0,100] for display.
// Clamping before comparison would silently disable the hard-limit check
// for spend far beyond 100%, so both values are kept.
type Snapshot struct {
	CurrentMonthSpentEur float64
	RemainingEur         float64
	PercentUsed          float64
	PercentUsedRaw       float64
	IsNearLimit          bool
	HasHitLimit          bool

	IncludedCreditsTotalEur     float64
	IncludedCreditsUsedEur      float64
	IncludedCreditsRemainingEur float64
	ExtraUsageChargedEur        float64

	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Evaluate derives a snapshot from the limit row, the authoritative
// current-month spend and the plan's included credit allowance.
// This is a PURE function.
func Evaluate(l SpendingLimit, spentEur, includedEur float64, periodStart, periodEnd time.Time) Snapshot {
	snap := Snapshot{
		CurrentMonthSpentEur:    spentEur,
		IncludedCreditsTotalEur: includedEur,
		PeriodStart:             periodStart,
		PeriodEnd:               periodEnd,
	}

	snap.IncludedCreditsUsedEur = min(spentEur, includedEur)
	snap.IncludedCreditsRemainingEur = max(0, includedEur-spentEur)
	snap.ExtraUsageChargedEur = max(0, spentEur-includedEur)
	snap.RemainingEur = max(0, l.MonthlyLimitEur-spentEur)

	if l.MonthlyLimitEur > 0 {
		snap.PercentUsedRaw = spentEur / l.MonthlyLimitEur * 100
	}
	snap.PercentUsed = clamp(snap.PercentUsedRaw, 0, 100)

	snap.IsNearLimit = snap.PercentUsedRaw >= l.AlertThresholdPct
	snap.HasHitLimit = l.HardLimit && snap.PercentUsedRaw >= 100

	return snap
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
