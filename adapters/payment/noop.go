package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glowdesk/aimeter/ports"
)

// Noop discards overage reports. Used when metered billing is not
// configured.
type Noop struct{}

// NewNoop creates a no-op overage reporter.
func NewNoop() Noop { return Noop{} }

// ReportOverage does nothing.
func (Noop) ReportOverage(ctx context.Context, overageItemID string, amountEur float64, at time.Time) error {
	return nil
}

// Ensure interface compliance.
var _ ports.OverageReporter = Noop{}

// Report records a reported overage (for testing).
type Report struct {
	ItemID    string
	AmountEur float64
	At        time.Time
}

// Mock records overage reports instead of sending them (for testing).
type Mock struct {
	mu      sync.Mutex
	reports []Report
	Err     error
}

// NewMock creates a recording overage reporter.
func NewMock() *Mock { return &Mock{} }

// ReportOverage records the report.
func (m *Mock) ReportOverage(ctx context.Context, overageItemID string, amountEur float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.reports = append(m.reports, Report{ItemID: overageItemID, AmountEur: amountEur, At: at})
	return nil
}

// Reports returns a copy of all recorded reports.
func (m *Mock) Reports() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Report, len(m.reports))
	copy(out, m.reports)
	return out
}

// Ensure interface compliance.
var _ ports.OverageReporter = (*Mock)(nil)

// Config selects and configures an overage reporter.
type Config struct {
	Mode      string // "none", "stripe", "mock"
	StripeKey string
}

// NewReporter creates an overage reporter from config.
func NewReporter(cfg Config) (ports.OverageReporter, error) {
	switch cfg.Mode {
	case "stripe":
		if cfg.StripeKey == "" {
			return nil, fmt.Errorf("payment: stripe secret key is required")
		}
		return NewStripeReporter(StripeConfig{SecretKey: cfg.StripeKey}), nil
	case "mock":
		return NewMock(), nil
	case "none", "":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("payment: unknown mode: %s", cfg.Mode)
	}
}
