package credits_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glowdesk/aimeter/adapters/credits"
)

func TestRemote_IncludedCredits(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"included_ai_credits_eur": 20, "overage_item_id": "si_123"}`))
	}))
	defer srv.Close()

	r := credits.NewRemote(credits.RemoteConfig{BaseURL: srv.URL, APIKey: "internal-key"})
	a, err := r.IncludedCredits(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IncludedCredits: %v", err)
	}
	if a.IncludedEur != 20 {
		t.Errorf("IncludedEur = %v, want 20", a.IncludedEur)
	}
	if a.OverageItemID != "si_123" {
		t.Errorf("OverageItemID = %q, want si_123", a.OverageItemID)
	}
	if gotPath != "/internal/users/user-1/ai-credits" {
		t.Errorf("path = %q, want /internal/users/user-1/ai-credits", gotPath)
	}
	if gotAuth != "Bearer internal-key" {
		t.Errorf("Authorization = %q, want Bearer internal-key", gotAuth)
	}
}

func TestRemote_NoActivePlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := credits.NewRemote(credits.RemoteConfig{BaseURL: srv.URL})
	a, err := r.IncludedCredits(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IncludedCredits = %v, want nil error on 404", err)
	}
	if a.IncludedEur != 0 || a.OverageItemID != "" {
		t.Errorf("allowance = %+v, want zero on 404", a)
	}
}

func TestRemote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := credits.NewRemote(credits.RemoteConfig{BaseURL: srv.URL})
	if _, err := r.IncludedCredits(context.Background(), "user-1"); err == nil {
		t.Errorf("IncludedCredits = nil error, want error on 500")
	}
}

func TestStatic_PerUserOverride(t *testing.T) {
	s := credits.NewStatic(10, map[string]float64{"vip": 50})

	a, _ := s.IncludedCredits(context.Background(), "vip")
	if a.IncludedEur != 50 {
		t.Errorf("IncludedEur = %v, want 50 (override)", a.IncludedEur)
	}

	a, _ = s.IncludedCredits(context.Background(), "anyone")
	if a.IncludedEur != 10 {
		t.Errorf("IncludedEur = %v, want 10 (default)", a.IncludedEur)
	}
}
