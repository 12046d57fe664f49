package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/luisjglz/evaluat/pkg/config"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
)

// Mailer implements the Notifier interface over SMTP. When no SMTP
// host is configured it degrades to logging the message, which keeps
// development and test environments working without a mail relay.
type Mailer struct {
	config config.SMTPConfig
	logger *logger.Logger
}

// NewMailer creates a new mailer
func NewMailer(cfg config.SMTPConfig, log *logger.Logger) interfaces.Notifier {
	return &Mailer{
		config: cfg,
		logger: log,
	}
}

// Send delivers a single plain-text email
func (m *Mailer) Send(to, subject, body string) error {
	if m.config.Host == "" {
		m.logger.WithFields(map[string]interface{}{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured; logging email instead of sending")
		return nil
	}

	msg := m.buildMessage(to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var auth smtp.Auth
	if m.config.User != "" {
		auth = smtp.PlainAuth("", m.config.User, m.config.Password, m.config.Host)
	}

	if err := smtp.SendMail(addr, auth, m.config.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	m.logger.WithField("to", to).Info("Email sent")
	return nil
}

// buildMessage assembles the RFC 5322 message bytes
func (m *Mailer) buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
