package config

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, "pricing:\n  margin: 1.3\n")

	h, err := NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var notified *Config
	h.OnChange(func(cfg *Config) { notified = cfg })

	if err := os.WriteFile(path, []byte("pricing:\n  margin: 1.5\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if h.Get().Pricing.Margin != 1.5 {
		t.Errorf("Margin = %v, want 1.5 after reload", h.Get().Pricing.Margin)
	}
	if notified == nil || notified.Pricing.Margin != 1.5 {
		t.Errorf("OnChange not called with new config")
	}
}

func TestHolder_ReloadKeepsOldOnFailure(t *testing.T) {
	path := writeConfig(t, "pricing:\n  margin: 1.3\n")

	h, err := NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	// Margin below 1 fails validation.
	if err := os.WriteFile(path, []byte("pricing:\n  margin: 0.5\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatalf("Reload = nil error, want validation failure")
	}

	if h.Get().Pricing.Margin != 1.3 {
		t.Errorf("Margin = %v, want old 1.3 kept", h.Get().Pricing.Margin)
	}
}

func TestStaticHolder(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	h := NewStaticHolder(cfg)
	defer h.Stop()

	if h.Get() != cfg {
		t.Errorf("Get() returned a different config")
	}
	if err := h.Reload(); err != nil {
		t.Errorf("Reload on static holder = %v, want nil (no-op)", err)
	}
	if err := h.WatchFile(); err != nil {
		t.Errorf("WatchFile on static holder = %v, want nil (no-op)", err)
	}
}
