// Package email provides AlertSender adapters for spending notifications.
package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/glowdesk/aimeter/domain/limit"
	"github.com/glowdesk/aimeter/ports"
)

// Noop discards all alerts. Used when no email provider is configured.
type Noop struct{}

// NewNoop creates a no-op alert sender.
func NewNoop() Noop { return Noop{} }

// SendThresholdAlert does nothing.
func (Noop) SendThresholdAlert(ctx context.Context, userID string, snap limit.Snapshot) error {
	return nil
}

// SendLimitHitAlert does nothing.
func (Noop) SendLimitHitAlert(ctx context.Context, userID string, snap limit.Snapshot) error {
	return nil
}

// Ensure interface compliance.
var _ ports.AlertSender = Noop{}

// SentAlert records a delivered alert (for testing).
type SentAlert struct {
	Kind   string // "threshold" or "limit_hit"
	UserID string
	Snap   limit.Snapshot
}

// Mock records alerts instead of sending them (for testing).
type Mock struct {
	mu   sync.Mutex
	sent []SentAlert
	// Err, when set, is returned from every send.
	Err error
}

// NewMock creates a recording alert sender.
func NewMock() *Mock { return &Mock{} }

// SendThresholdAlert records a threshold alert.
func (m *Mock) SendThresholdAlert(ctx context.Context, userID string, snap limit.Snapshot) error {
	return m.record("threshold", userID, snap)
}

// SendLimitHitAlert records a limit-hit alert.
func (m *Mock) SendLimitHitAlert(ctx context.Context, userID string, snap limit.Snapshot) error {
	return m.record("limit_hit", userID, snap)
}

func (m *Mock) record(kind, userID string, snap limit.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentAlert{Kind: kind, UserID: userID, Snap: snap})
	return nil
}

// Sent returns a copy of all recorded alerts.
func (m *Mock) Sent() []SentAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentAlert, len(m.sent))
	copy(out, m.sent)
	return out
}

// Ensure interface compliance.
var _ ports.AlertSender = (*Mock)(nil)

// Config selects and configures an alert sender.
type Config struct {
	Provider string // "smtp", "mock", "none"
	SMTP     SMTPConfig
}

// NewSender creates an alert sender from config.
func NewSender(cfg Config) (ports.AlertSender, error) {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("email: smtp host is required")
		}
		if cfg.SMTP.Recipient == nil {
			if cfg.SMTP.RecipientTemplate == "" {
				return nil, fmt.Errorf("email: smtp requires a recipient resolver or recipient template")
			}
			resolve, err := RecipientFromTemplate(cfg.SMTP.RecipientTemplate)
			if err != nil {
				return nil, err
			}
			cfg.SMTP.Recipient = resolve
		}
		return NewSMTPSender(cfg.SMTP), nil
	case "mock":
		return NewMock(), nil
	case "none", "":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("email: unknown provider: %s", cfg.Provider)
	}
}
