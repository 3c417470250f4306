package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glowdesk/aimeter/adapters/sqlite"
	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/glowdesk/aimeter/ports"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Errorf("second Migrate() = %v, want nil", err)
	}
}

func TestUsageStore_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewUsageStore(db)
	ctx := context.Background()
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	e := usage.Event{
		ID:           "evt-1",
		UserID:       "user-1",
		SalonID:      "salon-9",
		Feature:      "caption",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		InputTokens:  100,
		OutputTokens: 400,
		TotalTokens:  500,
		CostUSD:      0.0042,
		Success:      true,
		Metadata:     map[string]string{"tone": "warm"},
		Timestamp:    ts,
	}
	if err := store.Record(ctx, e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := store.GetRecentEvents(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len = %d, want 1", len(events))
	}

	got := events[0]
	if got.ID != e.ID || got.SalonID != e.SalonID || got.Feature != e.Feature {
		t.Errorf("event = %+v, want %+v", got, e)
	}
	if got.TotalTokens != 500 {
		t.Errorf("TotalTokens = %d, want 500", got.TotalTokens)
	}
	if got.CostUSD != e.CostUSD {
		t.Errorf("CostUSD = %v, want %v", got.CostUSD, e.CostUSD)
	}
	if got.Metadata["tone"] != "warm" {
		t.Errorf("Metadata = %v, want tone=warm", got.Metadata)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestUsageStore_SpendSince(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewUsageStore(db)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	events := []usage.Event{
		{ID: "e1", UserID: "user-1", Feature: "caption", CostUSD: 1.0, Success: true, Timestamp: start.Add(time.Hour)},
		{ID: "e2", UserID: "user-1", Feature: "caption", CostUSD: 2.0, Success: false, Timestamp: start.Add(2 * time.Hour)},
		{ID: "e3", UserID: "user-1", Feature: "caption", CostUSD: 0.5, Success: true, Timestamp: start.Add(-time.Hour)},
		{ID: "e4", UserID: "user-2", Feature: "caption", CostUSD: 4.0, Success: true, Timestamp: start.Add(time.Hour)},
	}
	if err := store.RecordBatch(ctx, events); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}

	got, err := store.SpendSince(ctx, "user-1", start)
	if err != nil {
		t.Fatalf("SpendSince: %v", err)
	}
	if got != 1.0 {
		t.Errorf("SpendSince = %v, want 1.0 (successful, in-period, this user only)", got)
	}
}

func TestUsageStore_Cleanup(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewUsageStore(db)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	store.Record(ctx, usage.Event{ID: "old", UserID: "u", Feature: "f", Timestamp: cutoff.AddDate(0, -2, 0)})
	store.Record(ctx, usage.Event{ID: "new", UserID: "u", Feature: "f", Timestamp: cutoff.Add(time.Hour)})

	removed, err := store.Cleanup(ctx, cutoff)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestLimitStore_GetOrCreateAndUpdate(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewLimitStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	l, err := store.GetOrCreate(ctx, "user-1", now)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if l.MonthlyLimitEur != 50 || l.AlertThresholdPct != 80 || l.HardLimit {
		t.Errorf("default = %+v, want 50 EUR / 80%% / soft", l)
	}

	l.MonthlyLimitEur = 120
	l.HardLimit = true
	if err := store.Update(ctx, l); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.GetOrCreate(ctx, "user-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetOrCreate after update: %v", err)
	}
	if got.MonthlyLimitEur != 120 || !got.HardLimit {
		t.Errorf("after update = %+v, want 120 EUR hard", got)
	}
}

func TestLimitStore_UpdateUnknownUser(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewLimitStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	l, _ := store.GetOrCreate(ctx, "user-1", now)
	l.UserID = "ghost"
	if err := store.Update(ctx, l); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Update = %v, want ErrNotFound", err)
	}
}

func TestLimitStore_ResetPeriodCAS(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewLimitStore(db)
	ctx := context.Background()
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	l, _ := store.GetOrCreate(ctx, "user-1", feb)
	if err := store.SetSpent(ctx, "user-1", 42, feb.Add(time.Hour)); err != nil {
		t.Fatalf("SetSpent: %v", err)
	}
	if err := store.MarkAlertSent(ctx, "user-1", feb.Add(time.Hour)); err != nil {
		t.Fatalf("MarkAlertSent: %v", err)
	}

	did, err := store.ResetPeriod(ctx, "user-1", l.LastResetAt, mar)
	if err != nil {
		t.Fatalf("ResetPeriod: %v", err)
	}
	if !did {
		t.Errorf("ResetPeriod = false, want true on first reset")
	}

	// Stale timestamp: the conditional update matches no rows.
	did, err = store.ResetPeriod(ctx, "user-1", l.LastResetAt, mar.Add(time.Minute))
	if err != nil {
		t.Fatalf("ResetPeriod second: %v", err)
	}
	if did {
		t.Errorf("ResetPeriod = true on stale timestamp, want false")
	}

	got, _ := store.GetOrCreate(ctx, "user-1", mar)
	if got.CurrentMonthSpentEur != 0 {
		t.Errorf("CurrentMonthSpentEur = %v, want 0", got.CurrentMonthSpentEur)
	}
	if got.AlertSentAt != nil {
		t.Errorf("AlertSentAt = %v, want nil after reset", got.AlertSentAt)
	}
	if !got.LastResetAt.Equal(mar) {
		t.Errorf("LastResetAt = %v, want %v", got.LastResetAt, mar)
	}
}

func TestTokenStore_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewTokenStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token := ports.Token{
		ID:         "tok-1",
		Prefix:     "abcd1234",
		SecretHash: []byte("hash"),
		UserID:     "user-1",
		Name:       "mobile app",
		CreatedAt:  now,
	}
	if err := store.Create(ctx, token); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.GetByPrefix(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("GetByPrefix: %v", err)
	}
	if got.ID != "tok-1" || got.UserID != "user-1" || string(got.SecretHash) != "hash" {
		t.Errorf("token = %+v, want %+v", got, token)
	}
	if got.RevokedAt != nil {
		t.Errorf("RevokedAt = %v, want nil", got.RevokedAt)
	}
}

func TestTokenStore_GetByPrefixNotFound(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewTokenStore(db)

	_, err := store.GetByPrefix(context.Background(), "missing")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("GetByPrefix = %v, want ErrNotFound", err)
	}
}

func TestTokenStore_Revoke(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewTokenStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store.Create(ctx, ports.Token{ID: "tok-1", Prefix: "p1", SecretHash: []byte("h"), CreatedAt: now})

	if err := store.Revoke(ctx, "tok-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	got, err := store.GetByPrefix(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByPrefix: %v", err)
	}
	if got.RevokedAt == nil {
		t.Errorf("RevokedAt = nil, want set")
	}

	if err := store.Revoke(ctx, "tok-1", now.Add(2*time.Hour)); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second Revoke = %v, want ErrNotFound", err)
	}
}
