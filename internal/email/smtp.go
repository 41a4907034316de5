package email

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPSender struct {
	from   string
	dialer dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) SendVerification(ctx context.Context, to, link string) error {
	body := fmt.Sprintf(
		`<p>Welcome to CarePortal.</p><p>Confirm your email address to activate your account:</p><p><a href="%s">Confirm email</a></p>`,
		html.EscapeString(link),
	)
	return s.send(ctx, to, "Confirm your CarePortal account", body)
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, link string) error {
	body := fmt.Sprintf(
		`<p>We received a request to reset your password.</p><p><a href="%s">Choose a new password</a></p><p>If you did not ask for this, ignore this email.</p>`,
		html.EscapeString(link),
	)
	return s.send(ctx, to, "Reset your CarePortal password", body)
}

func (s *SMTPSender) SendCustom(ctx context.Context, to, subject, content string) error {
	return s.send(ctx, to, subject, content)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(newMessage(s.from, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func newMessage(from, to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

// LogSender writes emails to the log instead of sending them. Used when no SMTP host is set.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerification(_ context.Context, to, link string) error {
	s.logger.Info().Str("to", to).Str("link", link).Msg("verification email")
	return nil
}

func (s *LogSender) SendPasswordReset(_ context.Context, to, link string) error {
	s.logger.Info().Str("to", to).Str("link", link).Msg("password reset email")
	return nil
}

func (s *LogSender) SendCustom(_ context.Context, to, subject, _ string) error {
	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email")
	return nil
}
