package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/glowdesk/aimeter/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Record stores a single usage event.
func (s *UsageStore) Record(ctx context.Context, e usage.Event) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}
	// Store timestamps in UTC for consistent querying
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_events (
			id, user_id, salon_id, feature, provider, model,
			input_tokens, output_tokens, total_tokens, cost_usd, success, metadata, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, nullString(e.SalonID), e.Feature, e.Provider, e.Model,
		e.InputTokens, e.OutputTokens, e.TotalTokens, e.CostUSD, e.Success, meta, e.Timestamp.UTC())
	return err
}

// RecordBatch stores multiple usage events in a single transaction.
func (s *UsageStore) RecordBatch(ctx context.Context, events []usage.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_events (
			id, user_id, salon_id, feature, provider, model,
			input_tokens, output_tokens, total_tokens, cost_usd, success, metadata, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		meta, err := marshalMetadata(e.Metadata)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			e.ID, e.UserID, nullString(e.SalonID), e.Feature, e.Provider, e.Model,
			e.InputTokens, e.OutputTokens, e.TotalTokens, e.CostUSD, e.Success, meta, e.Timestamp.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SpendSince returns the summed USD cost of successful events since the
// given instant. Failed operations are metered but never billed.
func (s *UsageStore) SpendSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	// Format as ISO8601 for SQLite comparison; timestamps are stored in UTC
	sinceStr := since.UTC().Format("2006-01-02 15:04:05")
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0)
		FROM usage_events
		WHERE user_id = ? AND success = 1 AND datetime(timestamp) >= datetime(?)
	`, userID, sinceStr)

	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// GetRecentEvents returns the most recent events for a user.
func (s *UsageStore) GetRecentEvents(ctx context.Context, userID string, limit int) ([]usage.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, salon_id, feature, provider, model,
		       input_tokens, output_tokens, total_tokens, cost_usd, success, metadata, timestamp
		FROM usage_events
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var e usage.Event
		var salonID, provider, model, meta sql.NullString

		err := rows.Scan(
			&e.ID, &e.UserID, &salonID, &e.Feature, &provider, &model,
			&e.InputTokens, &e.OutputTokens, &e.TotalTokens, &e.CostUSD, &e.Success, &meta, &e.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		e.SalonID = salonID.String
		e.Provider = provider.String
		e.Model = model.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, err
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Cleanup removes events older than the cutoff.
func (s *UsageStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_events WHERE timestamp < ?
	`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
