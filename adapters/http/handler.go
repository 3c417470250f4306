// Package http provides the HTTP API of the metering service.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/glowdesk/aimeter/adapters/metrics"
	"github.com/glowdesk/aimeter/app"
	"github.com/glowdesk/aimeter/domain/limit"
	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ErrorResponseBody represents an error response body.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Code    string `json:"code" example:"invalid_token"`
	Message string `json:"message" example:"The provided token is invalid"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"aimeter"`
}

// SpendingLimitResponse is the full usage/limit state returned to clients.
type SpendingLimitResponse struct {
	Limit           LimitBody   `json:"limit"`
	Usage           UsageBody   `json:"usage"`
	IncludedCredits CreditsBody `json:"includedCredits"`
	ExtraUsage      ExtraBody   `json:"extraUsage"`
	Alerts          AlertsBody  `json:"alerts"`
	Period          PeriodBody  `json:"period"`
}

// LimitBody is the configured limit portion of the response.
type LimitBody struct {
	MonthlyLimitEur float64 `json:"monthlyLimitEur" example:"50"`
	AlertThreshold  float64 `json:"alertThreshold" example:"80"`
	HardLimit       bool    `json:"hardLimit" example:"false"`
}

// UsageBody is the current-period usage portion of the response.
type UsageBody struct {
	CurrentMonthSpentEur float64 `json:"currentMonthSpentEur" example:"42"`
	RemainingEur         float64 `json:"remainingEur" example:"8"`
	PercentageUsed       float64 `json:"percentageUsed" example:"84"`
	IsNearLimit          bool    `json:"isNearLimit" example:"true"`
	HasHitLimit          bool    `json:"hasHitLimit" example:"false"`
}

// CreditsBody is the plan-credit portion of the response.
type CreditsBody struct {
	TotalEur       float64 `json:"totalEur" example:"10"`
	UsedEur        float64 `json:"usedEur" example:"10"`
	RemainingEur   float64 `json:"remainingEur" example:"0"`
	PercentageUsed float64 `json:"percentageUsed" example:"100"`
}

// ExtraBody is the billed-beyond-credits portion of the response.
type ExtraBody struct {
	ChargedEur    float64 `json:"chargedEur" example:"32"`
	HasExtraUsage bool    `json:"hasExtraUsage" example:"true"`
}

// AlertsBody carries the period alert stamps.
type AlertsBody struct {
	AlertSentAt *time.Time `json:"alertSentAt"`
	LimitHitAt  *time.Time `json:"limitHitAt"`
}

// PeriodBody carries the billing-period bounds.
type PeriodBody struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UpdateLimitRequest is the PATCH body; absent fields are left untouched.
type UpdateLimitRequest struct {
	MonthlyLimitEur *float64 `json:"monthlyLimitEur"`
	AlertThreshold  *float64 `json:"alertThreshold"`
	HardLimit       *bool    `json:"hardLimit"`
}

// RecordEventRequest is the POST /usage/events body.
type RecordEventRequest struct {
	SalonID      string            `json:"salonId,omitempty"`
	Feature      string            `json:"feature"`
	Provider     string            `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	InputTokens  int64             `json:"inputTokens,omitempty"`
	OutputTokens int64             `json:"outputTokens,omitempty"`
	CostUSD      float64           `json:"costUsd"`
	Success      bool              `json:"success"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// EventResponse is a recorded usage event as returned to clients.
type EventResponse struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	SalonID      string            `json:"salonId,omitempty"`
	Feature      string            `json:"feature"`
	Provider     string            `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	InputTokens  int64             `json:"inputTokens"`
	OutputTokens int64             `json:"outputTokens"`
	TotalTokens  int64             `json:"totalTokens"`
	CostUSD      float64           `json:"costUsd"`
	Success      bool              `json:"success"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// MeterHandler exposes the metering service over HTTP.
type MeterHandler struct {
	service *app.MeterService
	logger  zerolog.Logger
}

// NewMeterHandler creates a new metering HTTP handler.
func NewMeterHandler(service *app.MeterService, logger zerolog.Logger) *MeterHandler {
	return &MeterHandler{service: service, logger: logger}
}

// GetSpendingLimit returns the acting user's usage/limit snapshot.
//
//	@Summary		Get spending limit and usage
//	@Description	Evaluates the acting user's current-month usage against their spending limit
//	@Tags			Limits
//	@Produce		json
//	@Success		200	{object}	SpendingLimitResponse
//	@Failure		401	{object}	ErrorResponseBody	"Invalid or missing token"
//	@Security		BearerAuth
//	@Router			/v1/spending-limit [get]
func (h *MeterHandler) GetSpendingLimit(w http.ResponseWriter, r *http.Request) {
	userID := ActingUser(r.Context())

	l, snap, err := h.service.Evaluate(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("evaluation failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to evaluate spending limit")
		return
	}

	writeJSON(w, http.StatusOK, toSpendingLimitResponse(l, snap))
}

// UpdateSpendingLimit applies a partial update to the acting user's limit.
//
//	@Summary		Update spending limit
//	@Description	Partially updates the acting user's spending limit configuration
//	@Tags			Limits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateLimitRequest	true	"Fields to update"
//	@Success		200		{object}	SpendingLimitResponse
//	@Failure		400		{object}	ErrorResponseBody	"Out-of-range field"
//	@Failure		401		{object}	ErrorResponseBody	"Invalid or missing token"
//	@Security		BearerAuth
//	@Router			/v1/spending-limit [patch]
func (h *MeterHandler) UpdateSpendingLimit(w http.ResponseWriter, r *http.Request) {
	userID := ActingUser(r.Context())

	var req UpdateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	u := limit.Update{
		MonthlyLimitEur:   req.MonthlyLimitEur,
		AlertThresholdPct: req.AlertThreshold,
		HardLimit:         req.HardLimit,
	}

	l, snap, err := h.service.UpdateLimit(r.Context(), userID, u)
	if err != nil {
		var verr *limit.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation_failed", verr.Error())
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("limit update failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to update spending limit")
		return
	}

	writeJSON(w, http.StatusOK, toSpendingLimitResponse(l, snap))
}

// RecordEvent appends a usage event for the acting user.
//
//	@Summary		Record usage event
//	@Description	Durably appends a completed AI operation. Recording never fails for being over limit.
//	@Tags			Usage
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RecordEventRequest	true	"Usage event"
//	@Success		202		{object}	EventResponse
//	@Failure		400		{object}	ErrorResponseBody	"Missing required field"
//	@Failure		401		{object}	ErrorResponseBody	"Invalid or missing token"
//	@Security		BearerAuth
//	@Router			/v1/usage/events [post]
func (h *MeterHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	userID := ActingUser(r.Context())

	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	e, err := h.service.Record(r.Context(), usage.Input{
		UserID:       userID,
		SalonID:      req.SalonID,
		Feature:      req.Feature,
		Provider:     req.Provider,
		Model:        req.Model,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		CostUSD:      req.CostUSD,
		Success:      req.Success,
		Metadata:     req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrMissingUser), errors.Is(err, usage.ErrMissingFeature), errors.Is(err, usage.ErrNegativeCost):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("event recording failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to record usage event")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, toEventResponse(e))
}

// ListEvents returns the acting user's most recent usage events.
//
//	@Summary		List recent usage events
//	@Tags			Usage
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum events to return (default 50)"
//	@Success		200		{array}		EventResponse
//	@Failure		401		{object}	ErrorResponseBody	"Invalid or missing token"
//	@Security		BearerAuth
//	@Router			/v1/usage/events [get]
func (h *MeterHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID := ActingUser(r.Context())

	n := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 1000 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be an integer between 1 and 1000")
			return
		}
		n = v
	}

	events, err := h.service.RecentEvents(r.Context(), userID, n)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("event listing failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list usage events")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func toSpendingLimitResponse(l limit.SpendingLimit, snap limit.Snapshot) SpendingLimitResponse {
	creditsPct := 0.0
	if snap.IncludedCreditsTotalEur > 0 {
		creditsPct = snap.IncludedCreditsUsedEur / snap.IncludedCreditsTotalEur * 100
	}
	return SpendingLimitResponse{
		Limit: LimitBody{
			MonthlyLimitEur: l.MonthlyLimitEur,
			AlertThreshold:  l.AlertThresholdPct,
			HardLimit:       l.HardLimit,
		},
		Usage: UsageBody{
			CurrentMonthSpentEur: snap.CurrentMonthSpentEur,
			RemainingEur:         snap.RemainingEur,
			PercentageUsed:       snap.PercentUsed,
			IsNearLimit:          snap.IsNearLimit,
			HasHitLimit:          snap.HasHitLimit,
		},
		IncludedCredits: CreditsBody{
			TotalEur:       snap.IncludedCreditsTotalEur,
			UsedEur:        snap.IncludedCreditsUsedEur,
			RemainingEur:   snap.IncludedCreditsRemainingEur,
			PercentageUsed: creditsPct,
		},
		ExtraUsage: ExtraBody{
			ChargedEur:    snap.ExtraUsageChargedEur,
			HasExtraUsage: snap.ExtraUsageChargedEur > 0,
		},
		Alerts: AlertsBody{
			AlertSentAt: l.AlertSentAt,
			LimitHitAt:  l.LimitHitAt,
		},
		Period: PeriodBody{
			Start: snap.PeriodStart,
			End:   snap.PeriodEnd,
		},
	}
}

func toEventResponse(e usage.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		UserID:       e.UserID,
		SalonID:      e.SalonID,
		Feature:      e.Feature,
		Provider:     e.Provider,
		Model:        e.Model,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		TotalTokens:  e.TotalTokens,
		CostUSD:      e.CostUSD,
		Success:      e.Success,
		Metadata:     e.Metadata,
		Timestamp:    e.Timestamp,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}

// Healthz returns a simple liveness check.
//
//	@Summary	Liveness check
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	map[string]string	"status: ok"
//	@Router		/healthz [get]
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version returns the service version.
//
//	@Summary	Get service version
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	VersionResponse
//	@Router		/version [get]
func Version(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "aimeter"})
	}
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // Optional handler for /metrics (defaults to promhttp when Metrics is set)
	Version        string
}

// NewRouter creates the HTTP router. Token auth applies to the /v1 API;
// health, version and metrics stay public.
func NewRouter(h *MeterHandler, auth *TokenAuth, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/healthz", Healthz)
	r.Get("/version", Version(cfg.Version))

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/spending-limit", h.GetSpendingLimit)
		r.Patch("/spending-limit", h.UpdateSpendingLimit)
		r.Post("/usage/events", h.RecordEvent)
		r.Get("/usage/events", h.ListEvents)
	})

	return r
}
