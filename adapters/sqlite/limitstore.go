package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/glowdesk/aimeter/domain/limit"
	"github.com/glowdesk/aimeter/ports"
)

// LimitStore implements ports.LimitStore using SQLite.
type LimitStore struct {
	db *DB
}

// NewLimitStore creates a new SQLite limit store.
func NewLimitStore(db *DB) *LimitStore {
	return &LimitStore{db: db}
}

// GetOrCreate retrieves a user's limit, creating the default row on first
// access. INSERT OR IGNORE keeps creation idempotent under concurrency.
func (s *LimitStore) GetOrCreate(ctx context.Context, userID string, now time.Time) (limit.SpendingLimit, error) {
	l, err := s.get(ctx, userID)
	if err == nil {
		return l, nil
	}
	if err != sql.ErrNoRows {
		return limit.SpendingLimit{}, err
	}

	def := limit.Default(userID, now.UTC())
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO spending_limits (
			user_id, monthly_limit_eur, alert_threshold_pct, hard_limit,
			current_month_spent_eur, last_reset_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, def.UserID, def.MonthlyLimitEur, def.AlertThresholdPct, def.HardLimit,
		def.CurrentMonthSpentEur, def.LastResetAt, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return limit.SpendingLimit{}, err
	}

	return s.get(ctx, userID)
}

func (s *LimitStore) get(ctx context.Context, userID string) (limit.SpendingLimit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, monthly_limit_eur, alert_threshold_pct, hard_limit,
		       current_month_spent_eur, last_reset_at, alert_sent_at, limit_hit_at,
		       created_at, updated_at
		FROM spending_limits
		WHERE user_id = ?
	`, userID)

	var l limit.SpendingLimit
	var alertSentAt, limitHitAt sql.NullTime
	err := row.Scan(
		&l.UserID, &l.MonthlyLimitEur, &l.AlertThresholdPct, &l.HardLimit,
		&l.CurrentMonthSpentEur, &l.LastResetAt, &alertSentAt, &limitHitAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return limit.SpendingLimit{}, err
	}
	if alertSentAt.Valid {
		t := alertSentAt.Time
		l.AlertSentAt = &t
	}
	if limitHitAt.Valid {
		t := limitHitAt.Time
		l.LimitHitAt = &t
	}
	return l, nil
}

// Update persists a full limit row.
func (s *LimitStore) Update(ctx context.Context, l limit.SpendingLimit) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE spending_limits SET
			monthly_limit_eur = ?,
			alert_threshold_pct = ?,
			hard_limit = ?,
			current_month_spent_eur = ?,
			last_reset_at = ?,
			alert_sent_at = ?,
			limit_hit_at = ?,
			updated_at = ?
		WHERE user_id = ?
	`, l.MonthlyLimitEur, l.AlertThresholdPct, l.HardLimit,
		l.CurrentMonthSpentEur, l.LastResetAt, nullTime(l.AlertSentAt), nullTime(l.LimitHitAt),
		l.UpdatedAt, l.UserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// ResetPeriod zeroes the monthly fields iff the stored last_reset_at still
// equals old. The conditional WHERE makes concurrent resets converge: the
// second caller matches zero rows and sees the already-reset state.
func (s *LimitStore) ResetPeriod(ctx context.Context, userID string, old, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE spending_limits SET
			current_month_spent_eur = 0,
			last_reset_at = ?,
			alert_sent_at = NULL,
			limit_hit_at = NULL,
			updated_at = ?
		WHERE user_id = ? AND last_reset_at = ?
	`, now.UTC(), now.UTC(), userID, old)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetSpent updates the cached current-month spend. Last writer wins:
// concurrent reconcilers computed the value from the same event log.
func (s *LimitStore) SetSpent(ctx context.Context, userID string, spentEur float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE spending_limits SET current_month_spent_eur = ?, updated_at = ?
		WHERE user_id = ?
	`, spentEur, at.UTC(), userID)
	return err
}

// MarkAlertSent stamps the threshold-alert timestamp.
func (s *LimitStore) MarkAlertSent(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE spending_limits SET alert_sent_at = ?, updated_at = ?
		WHERE user_id = ?
	`, at.UTC(), at.UTC(), userID)
	return err
}

// MarkLimitHit stamps the limit-hit timestamp.
func (s *LimitStore) MarkLimitHit(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE spending_limits SET limit_hit_at = ?, updated_at = ?
		WHERE user_id = ?
	`, at.UTC(), at.UTC(), userID)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Ensure interface compliance.
var _ ports.LimitStore = (*LimitStore)(nil)
