package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/detectext/detectext/internal/config"
)

// SMTPService handles email sending via SMTP
type SMTPService struct {
	config *config.EmailConfig
}

// NewSMTPService creates a new SMTP email service
func NewSMTPService(cfg *config.EmailConfig) *SMTPService {
	return &SMTPService{config: cfg}
}

// Send sends a plain-text email via SMTP
func (s *SMTPService) Send(ctx context.Context, to, subject, body string) error {
	message := s.buildMessage(to, subject, body)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth = smtp.PlainAuth(
			"",
			s.config.SMTPUsername,
			s.config.SMTPPassword,
			s.config.SMTPHost,
		)
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	if s.config.SMTPTLS {
		return s.sendWithTLS(addr, auth, to, message)
	}

	return smtp.SendMail(addr, auth, s.config.FromAddress, []string{to}, message)
}

// IsConfigured reports whether the service can send
func (s *SMTPService) IsConfigured() bool {
	return s.config.SMTPHost != "" && s.config.SMTPPort != 0
}

// sendWithTLS sends email with STARTTLS
func (s *SMTPService) sendWithTLS(addr string, auth smtp.Auth, to string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = client.Close() }()

	tlsConfig := &tls.Config{
		ServerName: s.config.SMTPHost,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(s.config.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}

	if _, err := writer.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message body: %w", err)
	}

	return client.Quit()
}

// buildMessage builds the raw RFC 822 message
func (s *SMTPService) buildMessage(to, subject, body string) []byte {
	var buf bytes.Buffer

	from := s.config.FromAddress
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	if s.config.ReplyToAddress != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", s.config.ReplyToAddress)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)

	return buf.Bytes()
}
