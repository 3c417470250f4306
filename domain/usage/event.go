// Package usage provides usage event types and aggregation/pricing functions.
// All functions are pure - no side effects.
package usage

import (
	"errors"
	"time"
)

// Event represents a single completed AI operation (immutable value type).
// Events are append-only: once recorded they are never updated or deleted
// by the metering engine.
type Event struct {
	ID           string
	UserID       string
	SalonID      string // Optional tenant (empty for personal usage)
	Feature      string // Feature tag: "caption", "post_ideas", "hashtags", ...
	Provider     string // AI provider: "openai", "anthropic", ...
	Model        string
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64 // Raw provider cost in USD
	Success      bool
	Metadata     map[string]string
	Timestamp    time.Time
}

// Input is the caller-supplied portion of a usage event.
type Input struct {
	UserID       string
	SalonID      string
	Feature      string
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	Success      bool
	Metadata     map[string]string
}

// Validation errors for event input.
var (
	ErrMissingUser    = errors.New("usage: user id is required")
	ErrMissingFeature = errors.New("usage: feature is required")
	ErrNegativeCost   = errors.New("usage: cost must be >= 0")
)

// Validate checks the required fields of an event input.
// Being over a spending limit is never a validation concern: the event
// represents work already performed.
func (in Input) Validate() error {
	if in.UserID == "" {
		return ErrMissingUser
	}
	if in.Feature == "" {
		return ErrMissingFeature
	}
	if in.CostUSD < 0 {
		return ErrNegativeCost
	}
	return nil
}

// NewEvent builds an immutable event from validated input.
func NewEvent(id string, in Input, timestamp time.Time) Event {
	total := in.InputTokens + in.OutputTokens
	return Event{
		ID:           id,
		UserID:       in.UserID,
		SalonID:      in.SalonID,
		Feature:      in.Feature,
		Provider:     in.Provider,
		Model:        in.Model,
		InputTokens:  in.InputTokens,
		OutputTokens: in.OutputTokens,
		TotalTokens:  total,
		CostUSD:      in.CostUSD,
		Success:      in.Success,
		Metadata:     in.Metadata,
		Timestamp:    timestamp,
	}
}
