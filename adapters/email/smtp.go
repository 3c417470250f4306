package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/glowdesk/aimeter/domain/limit"
	"github.com/glowdesk/aimeter/ports"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	AppName  string

	// Recipient resolves a user ID to an email address. The user
	// directory lives outside this service.
	Recipient func(userID string) string

	// RecipientTemplate is a fmt template with one %s verb for the user
	// ID, e.g. "%s@users.glowdesk.app". Used to build Recipient when no
	// resolver function is supplied.
	RecipientTemplate string
}

// RecipientFromTemplate builds a recipient resolver that substitutes the
// user ID into an address template.
func RecipientFromTemplate(template string) (func(userID string) string, error) {
	if !strings.Contains(template, "%s") {
		return nil, fmt.Errorf("email: recipient template must contain %%s, got %q", template)
	}
	return func(userID string) string {
		return fmt.Sprintf(template, userID)
	}, nil
}

// SMTPSender implements ports.AlertSender using SMTP.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates a new SMTP alert sender.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	if config.Port == 0 {
		config.Port = 587
	}
	if config.AppName == "" {
		config.AppName = "GlowDesk"
	}
	return &SMTPSender{config: config}
}

// SendThresholdAlert notifies the user they crossed their alert threshold.
func (s *SMTPSender) SendThresholdAlert(ctx context.Context, userID string, snap limit.Snapshot) error {
	subject := fmt.Sprintf("%s: you have used %.0f%% of your AI budget", s.config.AppName, snap.PercentUsed)
	body := fmt.Sprintf(
		"You have spent %.2f EUR of AI usage this month (%.0f%% of your limit).\n"+
			"Remaining budget: %.2f EUR.\n\n"+
			"You can adjust your spending limit in account settings.\n",
		snap.CurrentMonthSpentEur, snap.PercentUsed, snap.RemainingEur)
	return s.send(userID, subject, body)
}

// SendLimitHitAlert notifies the user their hard limit was reached.
func (s *SMTPSender) SendLimitHitAlert(ctx context.Context, userID string, snap limit.Snapshot) error {
	subject := fmt.Sprintf("%s: AI spending limit reached", s.config.AppName)
	body := fmt.Sprintf(
		"Your AI spending limit has been reached (%.2f EUR spent this month).\n"+
			"AI features are paused until the next billing month or until you raise the limit.\n",
		snap.CurrentMonthSpentEur)
	return s.send(userID, subject, body)
}

func (s *SMTPSender) send(userID, subject, body string) error {
	if s.config.Recipient == nil {
		return fmt.Errorf("email: no recipient resolver configured")
	}
	to := s.config.Recipient(userID)
	if to == "" {
		return fmt.Errorf("email: no address for user %s", userID)
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg.String()))
}

// Ensure interface compliance.
var _ ports.AlertSender = (*SMTPSender)(nil)
