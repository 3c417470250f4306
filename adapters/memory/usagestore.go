// Package memory provides in-memory implementations of storage ports,
// used in tests and single-process development setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/glowdesk/aimeter/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
type UsageStore struct {
	mu     sync.RWMutex
	events []usage.Event
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{}
}

// Record stores a single usage event.
func (s *UsageStore) Record(ctx context.Context, e usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// RecordBatch stores multiple usage events.
func (s *UsageStore) RecordBatch(ctx context.Context, events []usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// SpendSince returns the summed USD cost of successful events since the
// given instant.
func (s *UsageStore) SpendSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, e := range s.events {
		if e.UserID == userID && e.Success && !e.Timestamp.Before(since) {
			total += e.CostUSD
		}
	}
	return total, nil
}

// GetRecentEvents returns the most recent events for a user.
func (s *UsageStore) GetRecentEvents(ctx context.Context, userID string, limit int) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []usage.Event
	for _, e := range s.events {
		if e.UserID == userID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Cleanup removes events older than the cutoff.
func (s *UsageStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, e := range s.events {
		if e.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Len returns the number of stored events (for testing).
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
