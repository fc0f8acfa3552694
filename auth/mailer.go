package auth

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPMailer delivers recovery codes over plain SMTP with optional auth.
type SMTPMailer struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

var _ Mailer = (*SMTPMailer)(nil)

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, to, code string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	subject := "Subject: Password Reset Verification Code\r\n"
	body := fmt.Sprintf(
		"Your verification code is: %s\r\n\r\nIt expires in 15 minutes. If you did not request a password reset, ignore this message.\r\n",
		code,
	)
	msg := []byte(subject + "\r\n" + body)

	addr := m.Host + ":" + m.Port

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	return smtp.SendMail(addr, auth, m.From, []string{to}, msg)
}

// NoopMailer drops messages, for development and tests.
type NoopMailer struct{}

var _ Mailer = NoopMailer{}

func (NoopMailer) SendPasswordResetEmail(ctx context.Context, to, code string) error {
	return nil
}
