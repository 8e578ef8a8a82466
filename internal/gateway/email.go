package gateway

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

// EmailSender delivers account-level emails. It is off the recurrence
// engine's critical path.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPConfig configures the SMTP email gateway
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// SMTPEmailGateway sends email over SMTP
type SMTPEmailGateway struct {
	cfg SMTPConfig
	log *logger.Logger
}

// NewSMTPEmailGateway creates a new SMTP email gateway
func NewSMTPEmailGateway(cfg SMTPConfig, log *logger.Logger) *SMTPEmailGateway {
	return &SMTPEmailGateway{cfg: cfg, log: log}
}

// Send sends one HTML email
func (g *SMTPEmailGateway) Send(ctx context.Context, to, subject, html string) error {
	addr := fmt.Sprintf("%s:%d", g.cfg.Host, g.cfg.Port)

	var auth smtp.Auth
	if g.cfg.Username != "" {
		auth = smtp.PlainAuth("", g.cfg.Username, g.cfg.Password, g.cfg.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", g.cfg.FromName, g.cfg.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	if err := smtp.SendMail(addr, auth, g.cfg.FromEmail, []string{to}, []byte(b.String())); err != nil {
		return apperrors.NewDeliveryError("smtp send failed", err)
	}
	return nil
}
