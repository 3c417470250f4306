package credits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glowdesk/aimeter/ports"
)

// Remote resolves included credits from the billing/subscription module
// over HTTP. This keeps the metering engine decoupled from the billing
// schema.
//
// API Contract:
//
//	GET /internal/users/{id}/ai-credits
//	Response: {"included_ai_credits_eur": 20, "overage_item_id": "si_123"}
//	404 means the user has no active plan (zero allowance, not an error).
type Remote struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// RemoteConfig configures the remote resolver.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewRemote creates a remote credit resolver.
func NewRemote(cfg RemoteConfig) *Remote {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// IncludedCredits looks up the allowance granted by the user's active plan.
func (r *Remote) IncludedCredits(ctx context.Context, userID string) (ports.Allowance, error) {
	url := fmt.Sprintf("%s/internal/users/%s/ai-credits", r.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.Allowance{}, err
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return ports.Allowance{}, fmt.Errorf("credit lookup: %w", err)
	}
	defer resp.Body.Close()

	// No active plan grants nothing but is not a failure.
	if resp.StatusCode == http.StatusNotFound {
		return ports.Allowance{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ports.Allowance{}, fmt.Errorf("credit lookup: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		IncludedAICreditsEur float64 `json:"included_ai_credits_eur"`
		OverageItemID        string  `json:"overage_item_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ports.Allowance{}, fmt.Errorf("credit lookup: decode: %w", err)
	}

	return ports.Allowance{
		IncludedEur:   payload.IncludedAICreditsEur,
		OverageItemID: payload.OverageItemID,
	}, nil
}

// Ensure interface compliance.
var _ ports.CreditResolver = (*Remote)(nil)
