package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"github.com/innocapforge/forge-backend/pkg/config"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTP sends mail through the configured relay.
type SMTP struct {
	from   string
	dialer dialer
}

// New returns an SMTP sender, or a no-op sender when no host is configured.
func New(cfg config.MailConfig) Sender {
	if !cfg.Enabled() {
		return Noop{}
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.StartTLS {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &SMTP{from: cfg.From, dialer: d}
}

func (s *SMTP) Send(ctx context.Context, to []string, subject, html string) error {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if a := strings.TrimSpace(addr); a != "" {
			recipients = append(recipients, a)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.from == "" {
		return errors.New("mail sender address not configured")
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)
	return s.dialer.DialAndSend(m)
}

// Noop drops every message.
type Noop struct{}

func (Noop) Send(context.Context, []string, string, string) error { return nil }
