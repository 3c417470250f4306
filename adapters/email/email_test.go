package email

import (
	"context"
	"strings"
	"testing"

	"github.com/glowdesk/aimeter/domain/limit"
)

func TestRecipientFromTemplate(t *testing.T) {
	resolve, err := RecipientFromTemplate("%s@users.glowdesk.app")
	if err != nil {
		t.Fatalf("RecipientFromTemplate: %v", err)
	}
	if got := resolve("user-1"); got != "user-1@users.glowdesk.app" {
		t.Errorf("resolve = %q, want user-1@users.glowdesk.app", got)
	}

	if _, err := RecipientFromTemplate("billing@glowdesk.app"); err == nil {
		t.Errorf("RecipientFromTemplate without %%s = nil error, want error")
	}
}

func TestNewSender_SMTPRequiresRecipient(t *testing.T) {
	_, err := NewSender(Config{
		Provider: "smtp",
		SMTP:     SMTPConfig{Host: "mail.glowdesk.app", From: "billing@glowdesk.app"},
	})
	if err == nil {
		t.Errorf("NewSender = nil error, want error without a recipient resolver")
	}
}

func TestNewSender_SMTPResolvesRecipients(t *testing.T) {
	// Configured exactly like the server wiring: template only, no
	// resolver function. Port 1 is closed, so a send must get past
	// recipient resolution and fail on the dial instead.
	s, err := NewSender(Config{
		Provider: "smtp",
		SMTP: SMTPConfig{
			Host:              "127.0.0.1",
			Port:              1,
			From:              "billing@glowdesk.app",
			RecipientTemplate: "%s@users.glowdesk.app",
		},
	})
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	err = s.SendThresholdAlert(context.Background(), "user-1", limit.Snapshot{})
	if err == nil {
		t.Fatalf("SendThresholdAlert = nil error, want dial failure against closed port")
	}
	if strings.Contains(err.Error(), "recipient") {
		t.Errorf("recipient resolution failed before dialing: %v", err)
	}
}
