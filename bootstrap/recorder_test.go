package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/glowdesk/aimeter/adapters/memory"
	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/rs/zerolog"
)

func waitForLen(t *testing.T, store *memory.UsageStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Len() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("store Len = %d, want %d", store.Len(), want)
}

func TestBufferedRecorder_FlushesAtBatchSize(t *testing.T) {
	store := memory.NewUsageStore()
	r := NewBufferedRecorder(store, 3, time.Hour, zerolog.Nop())
	defer r.Close()

	r.Record(usage.Event{ID: "e1", UserID: "u", Feature: "f"})
	r.Record(usage.Event{ID: "e2", UserID: "u", Feature: "f"})
	if store.Len() != 0 {
		t.Errorf("Len = %d before batch full, want 0", store.Len())
	}

	r.Record(usage.Event{ID: "e3", UserID: "u", Feature: "f"})
	waitForLen(t, store, 3)
}

func TestBufferedRecorder_ExplicitFlush(t *testing.T) {
	store := memory.NewUsageStore()
	r := NewBufferedRecorder(store, 100, time.Hour, zerolog.Nop())
	defer r.Close()

	r.Record(usage.Event{ID: "e1", UserID: "u", Feature: "f"})
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	waitForLen(t, store, 1)
}

func TestBufferedRecorder_CloseDrainsBuffer(t *testing.T) {
	store := memory.NewUsageStore()
	r := NewBufferedRecorder(store, 100, time.Hour, zerolog.Nop())

	r.Record(usage.Event{ID: "e1", UserID: "u", Feature: "f"})
	r.Record(usage.Event{ID: "e2", UserID: "u", Feature: "f"})

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close writes synchronously, no polling needed.
	if store.Len() != 2 {
		t.Errorf("Len = %d after Close, want 2", store.Len())
	}

	// Close is idempotent.
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestBufferedRecorder_IntervalFlush(t *testing.T) {
	store := memory.NewUsageStore()
	r := NewBufferedRecorder(store, 100, 20*time.Millisecond, zerolog.Nop())
	defer r.Close()

	r.Record(usage.Event{ID: "e1", UserID: "u", Feature: "f"})
	waitForLen(t, store, 1)
}
