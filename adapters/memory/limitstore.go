package memory

import (
	"context"
	"sync"
	"time"

	"github.com/glowdesk/aimeter/domain/limit"
	"github.com/glowdesk/aimeter/ports"
)

// LimitStore is an in-memory implementation of ports.LimitStore.
type LimitStore struct {
	mu     sync.Mutex
	limits map[string]limit.SpendingLimit
}

// NewLimitStore creates a new in-memory limit store.
func NewLimitStore() *LimitStore {
	return &LimitStore{limits: make(map[string]limit.SpendingLimit)}
}

// GetOrCreate retrieves a user's limit, creating the default row on first
// access.
func (s *LimitStore) GetOrCreate(ctx context.Context, userID string, now time.Time) (limit.SpendingLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limits[userID]; ok {
		return l, nil
	}
	l := limit.Default(userID, now.UTC())
	s.limits[userID] = l
	return l, nil
}

// Update persists a full limit row.
func (s *LimitStore) Update(ctx context.Context, l limit.SpendingLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.limits[l.UserID]; !ok {
		return ports.ErrNotFound
	}
	s.limits[l.UserID] = l
	return nil
}

// ResetPeriod zeroes the monthly fields iff the stored last_reset_at
// still equals old (compare-and-set).
func (s *LimitStore) ResetPeriod(ctx context.Context, userID string, old, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limits[userID]
	if !ok {
		return false, ports.ErrNotFound
	}
	if !l.LastResetAt.Equal(old) {
		return false, nil
	}
	s.limits[userID] = limit.Reset(l, now.UTC())
	return true, nil
}

// SetSpent updates the cached current-month spend.
func (s *LimitStore) SetSpent(ctx context.Context, userID string, spentEur float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limits[userID]
	if !ok {
		return ports.ErrNotFound
	}
	l.CurrentMonthSpentEur = spentEur
	l.UpdatedAt = at.UTC()
	s.limits[userID] = l
	return nil
}

// MarkAlertSent stamps the threshold-alert timestamp.
func (s *LimitStore) MarkAlertSent(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limits[userID]
	if !ok {
		return ports.ErrNotFound
	}
	t := at.UTC()
	l.AlertSentAt = &t
	l.UpdatedAt = t
	s.limits[userID] = l
	return nil
}

// MarkLimitHit stamps the limit-hit timestamp.
func (s *LimitStore) MarkLimitHit(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limits[userID]
	if !ok {
		return ports.ErrNotFound
	}
	t := at.UTC()
	l.LimitHitAt = &t
	l.UpdatedAt = t
	s.limits[userID] = l
	return nil
}

// Ensure interface compliance.
var _ ports.LimitStore = (*LimitStore)(nil)
