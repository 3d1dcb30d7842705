package email

import (
	"context"
	"fmt"

	"github.com/detectext/detectext/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridService handles email sending via SendGrid
type SendGridService struct {
	config *config.EmailConfig
	client *sendgrid.Client
}

// NewSendGridService creates a new SendGrid email service
func NewSendGridService(cfg *config.EmailConfig) (*SendGridService, error) {
	if cfg.SendGridAPIKey == "" {
		return nil, fmt.Errorf("SendGrid API key is required")
	}

	return &SendGridService{
		config: cfg,
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}, nil
}

// Send sends a plain-text email via SendGrid
func (s *SendGridService) Send(ctx context.Context, to, subject, body string) error {
	from := mail.NewEmail(s.config.FromName, s.config.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, body, "")

	if s.config.ReplyToAddress != "" {
		message.SetReplyTo(mail.NewEmail("", s.config.ReplyToAddress))
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		log.Error().
			Err(err).
			Str("to", to).
			Str("subject", subject).
			Msg("Failed to send email via SendGrid")
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Error().
			Int("status_code", response.StatusCode).
			Str("body", response.Body).
			Str("to", to).
			Msg("SendGrid API returned error")
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}

	log.Info().
		Str("to", to).
		Str("subject", subject).
		Msg("Email sent via SendGrid")

	return nil
}

// IsConfigured reports whether the service can send
func (s *SendGridService) IsConfigured() bool {
	return true
}
