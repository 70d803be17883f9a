// Package notify delivers one-time codes to the account's registered contact.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/stashly/stashly-api/config"
)

// Sender matches the auth service's OTPSender collaborator contract.
type Sender interface {
	SendOTP(ctx context.Context, email, code string, ttl time.Duration) error
}

// Mailer sends one-time codes over SMTP.
type Mailer struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
	logger *slog.Logger
}

func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		return nil, fmt.Errorf("incomplete SMTP configuration")
	}
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}, nil
}

func (m *Mailer) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Your password reset code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your one-time password reset code is %s.\n\nIt expires in %s. If you did not request a reset, you can ignore this message.",
		code, ttl))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send one-time code: %w", err)
	}
	m.logger.DebugContext(ctx, "One-time code delivered", slog.String("email", email))
	return nil
}

// LogSender writes codes to the application log instead of sending mail.
// Development only.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	s.Logger.InfoContext(ctx, "Password reset code (log delivery)",
		slog.String("email", email),
		slog.String("code", code),
		slog.Duration("ttl", ttl),
	)
	return nil
}
