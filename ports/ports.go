// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/glowdesk/aimeter/domain/limit"
	"github.com/glowdesk/aimeter/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Random abstracts randomness for token generation.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
	// String generates a random string of n characters.
	String(n int) (string, error)
}

// Hasher provides token secret hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// UsageStore persists immutable usage events.
type UsageStore interface {
	// Record stores a single usage event.
	Record(ctx context.Context, e usage.Event) error

	// RecordBatch stores multiple usage events.
	RecordBatch(ctx context.Context, events []usage.Event) error

	// SpendSince returns the summed USD cost of successful events for the
	// user with timestamp >= since. This is the authoritative spend.
	SpendSince(ctx context.Context, userID string, since time.Time) (float64, error)

	// GetRecentEvents returns the most recent events for a user.
	GetRecentEvents(ctx context.Context, userID string, limit int) ([]usage.Event, error)

	// Cleanup removes events older than the cutoff (retention, CLI-only).
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// LimitStore persists per-user spending limits.
type LimitStore interface {
	// GetOrCreate retrieves a user's limit, creating the default row on
	// first access. Idempotent under concurrent callers.
	GetOrCreate(ctx context.Context, userID string, now time.Time) (limit.SpendingLimit, error)

	// Update persists a full limit row.
	Update(ctx context.Context, l limit.SpendingLimit) error

	// ResetPeriod zeroes the monthly fields iff the stored last_reset_at
	// still equals old (compare-and-set). Returns true when this caller
	// performed the reset; false means another caller got there first.
	ResetPeriod(ctx context.Context, userID string, old, now time.Time) (bool, error)

	// SetSpent updates the cached current-month spend.
	SetSpent(ctx context.Context, userID string, spentEur float64, at time.Time) error

	// MarkAlertSent stamps the threshold-alert timestamp.
	MarkAlertSent(ctx context.Context, userID string, at time.Time) error

	// MarkLimitHit stamps the limit-hit timestamp.
	MarkLimitHit(ctx context.Context, userID string, at time.Time) error
}

// Token is a service credential for the metering API.
// UserID empty means a service token that may act for any user.
type Token struct {
	ID         string
	Prefix     string
	SecretHash []byte
	UserID     string
	Name       string
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// TokenStore persists API tokens.
type TokenStore interface {
	// Create stores a new token.
	Create(ctx context.Context, t Token) error

	// GetByPrefix retrieves a token by its public prefix (for validation).
	GetByPrefix(ctx context.Context, prefix string) (Token, error)

	// Revoke marks a token as revoked.
	Revoke(ctx context.Context, id string, at time.Time) error

	// List returns all tokens.
	List(ctx context.Context) ([]Token, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// Allowance is the AI-credit grant attached to a user's active plan.
type Allowance struct {
	IncludedEur float64 // EUR absorbed before overage billing applies
	// OverageItemID identifies the metered billing line for extra usage
	// (e.g. a Stripe subscription item). Empty when overage billing is
	// not configured for the plan.
	OverageItemID string
}

// CreditResolver looks up the included-credit allowance granted by the
// user's active subscription plan. Side-effect free. Callers degrade to a
// zero allowance on error (fail closed - never silently grant credit).
type CreditResolver interface {
	IncludedCredits(ctx context.Context, userID string) (Allowance, error)
}

// AlertSender delivers spending notifications. Delivery mechanics are a
// collaborator concern; failures must not block evaluation.
type AlertSender interface {
	// SendThresholdAlert notifies the user they crossed their alert threshold.
	SendThresholdAlert(ctx context.Context, userID string, snap limit.Snapshot) error

	// SendLimitHitAlert notifies the user their hard limit was reached.
	SendLimitHitAlert(ctx context.Context, userID string, snap limit.Snapshot) error
}

// OverageReporter reports extra usage to the billing processor for
// metered billing.
type OverageReporter interface {
	ReportOverage(ctx context.Context, overageItemID string, amountEur float64, at time.Time) error
}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// UsageRecorder accepts usage events for async processing.
type UsageRecorder interface {
	// Record queues a usage event for processing. Non-blocking.
	Record(e usage.Event)

	// Flush forces immediate processing of queued events.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining events.
	Close() error
}
