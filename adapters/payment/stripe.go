// Package payment provides OverageReporter adapters for metered billing.
package payment

import (
	"context"
	"math"
	"time"

	"github.com/glowdesk/aimeter/ports"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/usagerecord"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey string
}

// StripeReporter reports extra usage as Stripe usage records against the
// plan's metered subscription item.
type StripeReporter struct {
	config StripeConfig
}

// NewStripeReporter creates a new Stripe overage reporter.
func NewStripeReporter(config StripeConfig) *StripeReporter {
	stripe.Key = config.SecretKey
	return &StripeReporter{config: config}
}

// ReportOverage records the extra-usage amount (EUR cents) against the
// subscription item. Action=set keeps repeated reports for the same
// period idempotent: the metered quantity is the period total, not a
// delta.
func (p *StripeReporter) ReportOverage(ctx context.Context, overageItemID string, amountEur float64, at time.Time) error {
	cents := int64(math.Round(amountEur * 100))
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(overageItemID),
		Quantity:         stripe.Int64(cents),
		Timestamp:        stripe.Int64(at.Unix()),
		Action:           stripe.String(string(stripe.UsageRecordActionSet)),
	}
	params.Context = ctx

	_, err := usagerecord.New(params)
	return err
}

// Ensure interface compliance.
var _ ports.OverageReporter = (*StripeReporter)(nil)
