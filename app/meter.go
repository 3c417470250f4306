// Package app provides application services that orchestrate domain logic
// and ports.
package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/glowdesk/aimeter/adapters/metrics"
	"github.com/glowdesk/aimeter/domain/limit"
	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/glowdesk/aimeter/ports"
	"github.com/rs/zerolog"
)

// reconcileEpsilon is the cache drift (EUR) above which the cached month
// spend is corrected from the event log.
const reconcileEpsilon = 0.01

// MeterDeps holds the dependencies of the meter service.
type MeterDeps struct {
	Limits   ports.LimitStore
	Events   ports.UsageStore
	Credits  ports.CreditResolver
	Alerts   ports.AlertSender
	Overage  ports.OverageReporter
	Recorder ports.UsageRecorder // optional: batched recording
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Pricing  usage.Pricing
	Logger   zerolog.Logger
	Metrics  *metrics.Collector // optional
}

// MeterService implements usage recording, limit evaluation and limit
// configuration. Enforcement is the caller's job: AI entry points consult
// Evaluate before invoking costly operations and must Record afterwards
// regardless of the pre-flight outcome.
type MeterService struct {
	limits   ports.LimitStore
	events   ports.UsageStore
	credits  ports.CreditResolver
	alerts   ports.AlertSender
	overage  ports.OverageReporter
	recorder ports.UsageRecorder
	clock    ports.Clock
	ids      ports.IDGenerator
	logger   zerolog.Logger
	metrics  *metrics.Collector

	mu      sync.RWMutex
	pricing usage.Pricing
}

// NewMeterService creates a meter service.
func NewMeterService(deps MeterDeps) *MeterService {
	pricing := deps.Pricing
	if pricing == (usage.Pricing{}) {
		pricing = usage.DefaultPricing()
	}
	return &MeterService{
		limits:   deps.Limits,
		events:   deps.Events,
		credits:  deps.Credits,
		alerts:   deps.Alerts,
		overage:  deps.Overage,
		recorder: deps.Recorder,
		clock:    deps.Clock,
		ids:      deps.IDs,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		pricing:  pricing,
	}
}

// Pricing returns the current pricing factors.
func (s *MeterService) Pricing() usage.Pricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pricing
}

// SetPricing swaps the pricing factors (config hot reload).
func (s *MeterService) SetPricing(p usage.Pricing) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.pricing = p
	s.mu.Unlock()
	return nil
}

// Record durably appends one usage event. It never fails for business
// reasons: an over-limit user's event still represents work performed and
// must be counted.
func (s *MeterService) Record(ctx context.Context, in usage.Input) (usage.Event, error) {
	if err := in.Validate(); err != nil {
		return usage.Event{}, err
	}

	e := usage.NewEvent(s.ids.New(), in, s.clock.Now().UTC())

	if s.recorder != nil {
		s.recorder.Record(e)
	} else if err := s.events.Record(ctx, e); err != nil {
		return usage.Event{}, fmt.Errorf("record usage event: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EventsRecorded.WithLabelValues(e.Feature, strconv.FormatBool(e.Success)).Inc()
		s.metrics.EventCostUSD.WithLabelValues(e.Feature).Add(e.CostUSD)
	}

	s.logger.Debug().
		Str("user_id", e.UserID).
		Str("feature", e.Feature).
		Float64("cost_usd", e.CostUSD).
		Bool("success", e.Success).
		Msg("usage event recorded")

	return e, nil
}

// Evaluate produces the usage/limit snapshot for a user. Steps: lazy
// monthly reset, authoritative aggregation, opportunistic cache
// reconciliation, credit resolution, snapshot derivation, alert side
// effects. It classifies state only; blocking on HasHitLimit is the
// caller's decision.
func (s *MeterService) Evaluate(ctx context.Context, userID string) (limit.SpendingLimit, limit.Snapshot, error) {
	now := s.clock.Now()
	if s.metrics != nil {
		s.metrics.Evaluations.Inc()
	}

	l, err := s.limits.GetOrCreate(ctx, userID, now)
	if err != nil {
		return limit.SpendingLimit{}, limit.Snapshot{}, fmt.Errorf("load spending limit: %w", err)
	}

	// Lazy monthly reset: conditional on the old last_reset_at so
	// concurrent callers converge without double-resetting.
	if limit.NeedsReset(now, l.LastResetAt) {
		did, err := s.limits.ResetPeriod(ctx, userID, l.LastResetAt, now)
		if err != nil {
			return limit.SpendingLimit{}, limit.Snapshot{}, fmt.Errorf("monthly reset: %w", err)
		}
		if did && s.metrics != nil {
			s.metrics.MonthlyResets.Inc()
		}
		l, err = s.limits.GetOrCreate(ctx, userID, now)
		if err != nil {
			return limit.SpendingLimit{}, limit.Snapshot{}, fmt.Errorf("reload spending limit: %w", err)
		}
	}

	periodStart, periodEnd := usage.PeriodBounds(now)

	spentUSD, err := s.events.SpendSince(ctx, userID, periodStart)
	if err != nil {
		return limit.SpendingLimit{}, limit.Snapshot{}, fmt.Errorf("aggregate month spend: %w", err)
	}
	spentEur := s.Pricing().ToEUR(spentUSD)

	// Reconcile the cached aggregate. The freshly computed value stays
	// authoritative even if the cache write fails.
	if diff := spentEur - l.CurrentMonthSpentEur; diff > reconcileEpsilon || diff < -reconcileEpsilon {
		if err := s.limits.SetSpent(ctx, userID, spentEur, now); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("spend cache write failed, using computed value")
		} else if s.metrics != nil {
			s.metrics.CacheReconciliations.Inc()
		}
	}
	l.CurrentMonthSpentEur = spentEur

	allowance, err := s.credits.IncludedCredits(ctx, userID)
	if err != nil {
		// Fail closed: never silently grant free credit.
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("credit lookup failed, assuming zero allowance")
		if s.metrics != nil {
			s.metrics.CreditLookupFailures.Inc()
		}
		allowance = ports.Allowance{}
	}

	snap := limit.Evaluate(l, spentEur, allowance.IncludedEur, periodStart, periodEnd)

	s.applyAlerts(ctx, &l, snap, now)

	return l, snap, nil
}

// applyAlerts stamps alert/limit-hit markers on first crossing within the
// period. A failed threshold alert skips the stamp so the next evaluation
// retries (at-least-once). The limit-hit stamp is state bookkeeping and
// is written regardless of notification outcome.
func (s *MeterService) applyAlerts(ctx context.Context, l *limit.SpendingLimit, snap limit.Snapshot, now time.Time) {
	if snap.IsNearLimit && l.AlertSentAt == nil {
		if err := s.alerts.SendThresholdAlert(ctx, l.UserID, snap); err != nil {
			s.logger.Warn().Err(err).Str("user_id", l.UserID).Msg("threshold alert failed, will retry on next evaluation")
		} else {
			if err := s.limits.MarkAlertSent(ctx, l.UserID, now); err != nil {
				s.logger.Warn().Err(err).Str("user_id", l.UserID).Msg("failed to stamp threshold alert")
			} else {
				l.AlertSentAt = &now
			}
			if s.metrics != nil {
				s.metrics.ThresholdAlerts.Inc()
			}
			s.logger.Info().
				Str("user_id", l.UserID).
				Float64("percent_used", snap.PercentUsedRaw).
				Msg("threshold alert sent")
		}
	}

	if snap.HasHitLimit && l.LimitHitAt == nil {
		if err := s.limits.MarkLimitHit(ctx, l.UserID, now); err != nil {
			s.logger.Warn().Err(err).Str("user_id", l.UserID).Msg("failed to stamp limit hit")
		} else {
			l.LimitHitAt = &now
		}
		if s.metrics != nil {
			s.metrics.LimitHits.Inc()
		}
		if err := s.alerts.SendLimitHitAlert(ctx, l.UserID, snap); err != nil {
			s.logger.Warn().Err(err).Str("user_id", l.UserID).Msg("limit hit alert failed")
		}
		s.logger.Info().
			Str("user_id", l.UserID).
			Float64("spent_eur", snap.CurrentMonthSpentEur).
			Msg("hard spending limit hit")
	}
}

// UpdateLimit applies a partial update to a user's spending limit and
// returns the fresh evaluation.
func (s *MeterService) UpdateLimit(ctx context.Context, userID string, u limit.Update) (limit.SpendingLimit, limit.Snapshot, error) {
	if err := u.Validate(); err != nil {
		return limit.SpendingLimit{}, limit.Snapshot{}, err
	}

	now := s.clock.Now()
	l, err := s.limits.GetOrCreate(ctx, userID, now)
	if err != nil {
		return limit.SpendingLimit{}, limit.Snapshot{}, fmt.Errorf("load spending limit: %w", err)
	}

	updated := limit.Apply(l, u, now)
	if err := s.limits.Update(ctx, updated); err != nil {
		return limit.SpendingLimit{}, limit.Snapshot{}, fmt.Errorf("save spending limit: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Float64("monthly_limit_eur", updated.MonthlyLimitEur).
		Float64("alert_threshold_pct", updated.AlertThresholdPct).
		Bool("hard_limit", updated.HardLimit).
		Msg("spending limit updated")

	return s.Evaluate(ctx, userID)
}

// RecentEvents returns the newest usage events for a user.
func (s *MeterService) RecentEvents(ctx context.Context, userID string, n int) ([]usage.Event, error) {
	if n <= 0 {
		n = 50
	}
	return s.events.GetRecentEvents(ctx, userID, n)
}

// ReportOverage pushes the user's current extra usage to the billing
// provider. Unlike Evaluate, a credit lookup failure is a hard error here:
// billing on a degraded zero allowance would overcharge.
func (s *MeterService) ReportOverage(ctx context.Context, userID string) (float64, error) {
	allowance, err := s.credits.IncludedCredits(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve plan credits: %w", err)
	}
	if allowance.OverageItemID == "" {
		return 0, nil
	}

	now := s.clock.Now()
	l, err := s.limits.GetOrCreate(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("load spending limit: %w", err)
	}

	periodStart, periodEnd := usage.PeriodBounds(now)
	spentUSD, err := s.events.SpendSince(ctx, userID, periodStart)
	if err != nil {
		return 0, fmt.Errorf("aggregate month spend: %w", err)
	}
	spentEur := s.Pricing().ToEUR(spentUSD)

	snap := limit.Evaluate(l, spentEur, allowance.IncludedEur, periodStart, periodEnd)
	if snap.ExtraUsageChargedEur <= 0 {
		return 0, nil
	}

	if err := s.overage.ReportOverage(ctx, allowance.OverageItemID, snap.ExtraUsageChargedEur, now); err != nil {
		return 0, fmt.Errorf("report overage: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Float64("extra_eur", snap.ExtraUsageChargedEur).
		Msg("overage reported")

	return snap.ExtraUsageChargedEur, nil
}

// Flush forces any buffered usage events to storage.
func (s *MeterService) Flush(ctx context.Context) error {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.Flush(ctx)
}
