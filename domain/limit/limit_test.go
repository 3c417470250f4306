package limit_test

import (
	"errors"
	"testing"
	"time"

	"github.com/glowdesk/aimeter/domain/limit"
)

func ptr[T any](v T) *T { return &v }

func TestDefault(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := limit.Default("user-1", now)

	if l.MonthlyLimitEur != 50 {
		t.Errorf("MonthlyLimitEur = %v, want 50", l.MonthlyLimitEur)
	}
	if l.AlertThresholdPct != 80 {
		t.Errorf("AlertThresholdPct = %v, want 80", l.AlertThresholdPct)
	}
	if l.HardLimit {
		t.Errorf("HardLimit = true, want false (soft by default)")
	}
	if !l.LastResetAt.Equal(now) {
		t.Errorf("LastResetAt = %v, want %v", l.LastResetAt, now)
	}
}

func TestUpdateValidate_Ranges(t *testing.T) {
	cases := []struct {
		name  string
		u     limit.Update
		valid bool
	}{
		{"empty", limit.Update{}, true},
		{"limit zero", limit.Update{MonthlyLimitEur: ptr(0.0)}, true},
		{"limit max", limit.Update{MonthlyLimitEur: ptr(10000.0)}, true},
		{"limit negative", limit.Update{MonthlyLimitEur: ptr(-1.0)}, false},
		{"limit above max", limit.Update{MonthlyLimitEur: ptr(10000.01)}, false},
		{"threshold zero", limit.Update{AlertThresholdPct: ptr(0.0)}, true},
		{"threshold hundred", limit.Update{AlertThresholdPct: ptr(100.0)}, true},
		{"threshold negative", limit.Update{AlertThresholdPct: ptr(-0.1)}, false},
		{"threshold above hundred", limit.Update{AlertThresholdPct: ptr(100.1)}, false},
	}

	for _, c := range cases {
		err := c.u.Validate()
		if c.valid && err != nil {
			t.Errorf("%s: Validate() = %v, want nil", c.name, err)
		}
		if !c.valid && err == nil {
			t.Errorf("%s: Validate() = nil, want error", c.name)
		}
	}
}

func TestUpdateValidate_ErrorType(t *testing.T) {
	err := limit.Update{MonthlyLimitEur: ptr(-1.0)}.Validate()

	var verr *limit.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() = %T, want *ValidationError", err)
	}
	if verr.Field != "monthlyLimitEur" {
		t.Errorf("Field = %q, want %q", verr.Field, "monthlyLimitEur")
	}
}

func TestApply_RaiseClearsAlertStamps(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	sent := now.Add(-time.Hour)
	l := limit.Default("user-1", now)
	l.MonthlyLimitEur = 50
	l.AlertSentAt = &sent
	l.LimitHitAt = &sent

	got := limit.Apply(l, limit.Update{MonthlyLimitEur: ptr(100.0)}, now)

	if got.MonthlyLimitEur != 100 {
		t.Errorf("MonthlyLimitEur = %v, want 100", got.MonthlyLimitEur)
	}
	if got.AlertSentAt != nil {
		t.Errorf("AlertSentAt = %v, want nil after raise", got.AlertSentAt)
	}
	if got.LimitHitAt != nil {
		t.Errorf("LimitHitAt = %v, want nil after raise", got.LimitHitAt)
	}
}

func TestApply_LowerKeepsAlertStamps(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	sent := now.Add(-time.Hour)
	l := limit.Default("user-1", now)
	l.MonthlyLimitEur = 50
	l.AlertSentAt = &sent

	got := limit.Apply(l, limit.Update{MonthlyLimitEur: ptr(30.0)}, now)

	if got.MonthlyLimitEur != 30 {
		t.Errorf("MonthlyLimitEur = %v, want 30", got.MonthlyLimitEur)
	}
	if got.AlertSentAt == nil {
		t.Errorf("AlertSentAt = nil, want kept after lowering")
	}
}

func TestApply_PartialUpdate(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	l := limit.Default("user-1", now)

	got := limit.Apply(l, limit.Update{HardLimit: ptr(true)}, now.Add(time.Hour))

	if !got.HardLimit {
		t.Errorf("HardLimit = false, want true")
	}
	if got.MonthlyLimitEur != l.MonthlyLimitEur {
		t.Errorf("MonthlyLimitEur changed: %v, want %v", got.MonthlyLimitEur, l.MonthlyLimitEur)
	}
	if got.AlertThresholdPct != l.AlertThresholdPct {
		t.Errorf("AlertThresholdPct changed: %v, want %v", got.AlertThresholdPct, l.AlertThresholdPct)
	}
	if !got.UpdatedAt.After(l.UpdatedAt) {
		t.Errorf("UpdatedAt not advanced: %v", got.UpdatedAt)
	}
}

func TestNeedsReset(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		last time.Time
		want bool
	}{
		{
			"same month",
			time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			false,
		},
		{
			"next month",
			time.Date(2026, 4, 1, 0, 0, 1, 0, time.UTC),
			time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC),
			true,
		},
		{
			"same month next year",
			time.Date(2027, 3, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			true,
		},
		{
			"year boundary",
			time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC),
			true,
		},
	}

	for _, c := range cases {
		if got := limit.NeedsReset(c.now, c.last); got != c.want {
			t.Errorf("%s: NeedsReset = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestReset(t *testing.T) {
	then := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sent := then.Add(time.Hour)

	l := limit.Default("user-1", then)
	l.CurrentMonthSpentEur = 42
	l.AlertSentAt = &sent
	l.LimitHitAt = &sent

	got := limit.Reset(l, now)

	if got.CurrentMonthSpentEur != 0 {
		t.Errorf("CurrentMonthSpentEur = %v, want 0", got.CurrentMonthSpentEur)
	}
	if !got.LastResetAt.Equal(now) {
		t.Errorf("LastResetAt = %v, want %v", got.LastResetAt, now)
	}
	if got.AlertSentAt != nil || got.LimitHitAt != nil {
		t.Errorf("alert stamps not cleared: %v, %v", got.AlertSentAt, got.LimitHitAt)
	}
	// Configuration survives the reset.
	if got.MonthlyLimitEur != l.MonthlyLimitEur || got.HardLimit != l.HardLimit {
		t.Errorf("configuration changed on reset")
	}
}
