package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/config"
)

// SMTPSender sends mail over plain SMTP with AUTH PLAIN. Good enough
// for a relay like Gmail or a local postfix; the interface keeps the
// door open for an API-based provider later.
type SMTPSender struct {
	config *config.MailConfig
	log    *zap.Logger
}

func NewSMTPSender(cfg *config.MailConfig, log *zap.Logger) *SMTPSender {
	return &SMTPSender{config: cfg, log: log}
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)

	msg := strings.Join([]string{
		"From: " + s.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.log.Debug("mail sent", zap.String("subject", subject))
	return nil
}

func (s *SMTPSender) SendVerificationCode(ctx context.Context, to, name, code string) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour verification code is: %s\n\nIt expires in 24 hours. If you did not create this account, ignore this message.\n",
		name, code)
	return s.send(ctx, to, "Verify your account", body)
}

func (s *SMTPSender) SendLoginCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(
		"Your sign-in code is: %s\n\nIt expires in 10 minutes. If you did not try to sign in, change your password.\n",
		code)
	return s.send(ctx, to, "Your sign-in code", body)
}

func (s *SMTPSender) SendRecoveryCode(ctx context.Context, to, name, code string) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour password recovery code is: %s\n\nIt expires in 15 minutes. If you did not request it, your password is still safe.\n",
		name, code)
	return s.send(ctx, to, "Password recovery", body)
}

func (s *SMTPSender) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf(
		"Welcome %s!\n\nYour account is verified and ready. Come see what's new in the gallery.\n",
		name)
	return s.send(ctx, to, "Welcome to NU-B Studio", body)
}
