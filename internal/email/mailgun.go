package email

import (
	"context"
	"fmt"
	"time"

	"github.com/detectext/detectext/internal/config"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog/log"
)

// MailgunService handles email sending via Mailgun
type MailgunService struct {
	config *config.EmailConfig
	client *mailgun.MailgunImpl
}

// NewMailgunService creates a new Mailgun email service
func NewMailgunService(cfg *config.EmailConfig) (*MailgunService, error) {
	if cfg.MailgunAPIKey == "" {
		return nil, fmt.Errorf("Mailgun API key is required")
	}
	if cfg.MailgunDomain == "" {
		return nil, fmt.Errorf("Mailgun domain is required")
	}

	return &MailgunService{
		config: cfg,
		client: mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
	}, nil
}

// Send sends a plain-text email via Mailgun
func (s *MailgunService) Send(ctx context.Context, to, subject, body string) error {
	message := s.client.NewMessage(
		fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress),
		subject,
		body,
		to,
	)

	if s.config.ReplyToAddress != "" {
		message.SetReplyTo(s.config.ReplyToAddress)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, id, err := s.client.Send(ctx, message)
	if err != nil {
		log.Error().
			Err(err).
			Str("to", to).
			Str("subject", subject).
			Msg("Failed to send email via Mailgun")
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info().
		Str("to", to).
		Str("subject", subject).
		Str("message_id", id).
		Msg("Email sent via Mailgun")

	return nil
}

// IsConfigured reports whether the service can send
func (s *MailgunService) IsConfigured() bool {
	return true
}
