// Package credits provides CreditResolver adapters: a static resolver for
// development/tests and a remote resolver that delegates to the billing
// and subscription module.
package credits

import (
	"context"

	"github.com/glowdesk/aimeter/ports"
)

// Static resolves included credits from fixed configuration. Used in
// development and single-tenant installs without a billing service.
type Static struct {
	defaultEur float64
	perUser    map[string]float64
}

// NewStatic creates a static resolver. perUser overrides the default
// allowance for specific user IDs; it may be nil.
func NewStatic(defaultEur float64, perUser map[string]float64) *Static {
	return &Static{defaultEur: defaultEur, perUser: perUser}
}

// IncludedCredits returns the configured allowance for the user.
func (s *Static) IncludedCredits(ctx context.Context, userID string) (ports.Allowance, error) {
	if eur, ok := s.perUser[userID]; ok {
		return ports.Allowance{IncludedEur: eur}, nil
	}
	return ports.Allowance{IncludedEur: s.defaultEur}, nil
}

// Ensure interface compliance.
var _ ports.CreditResolver = (*Static)(nil)
