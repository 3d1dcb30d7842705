package email

import (
	"context"
	"fmt"

	"github.com/detectext/detectext/internal/config"
)

// Service defines the interface for notification email providers
type Service interface {
	// Send sends a plain-text email
	Send(ctx context.Context, to, subject, body string) error

	// IsConfigured reports whether the service can actually send
	IsConfigured() bool
}

// NewService creates an email service based on configuration
func NewService(cfg *config.EmailConfig) (Service, error) {
	if !cfg.Enabled {
		return NewNoOpService("email disabled"), nil
	}

	switch cfg.Provider {
	case "smtp", "":
		if cfg.SMTPHost == "" || cfg.SMTPPort == 0 {
			return NewNoOpService("smtp not configured"), nil
		}
		return NewSMTPService(cfg), nil
	case "sendgrid":
		return NewSendGridService(cfg)
	case "mailgun":
		return NewMailgunService(cfg)
	case "ses":
		return NewSESService(cfg)
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}

// NoOpService is used when email is disabled or misconfigured
type NoOpService struct {
	reason string
}

// NewNoOpService creates a no-op email service with a reason
func NewNoOpService(reason string) *NoOpService {
	return &NoOpService{reason: reason}
}

func (s *NoOpService) Send(ctx context.Context, to, subject, body string) error {
	return fmt.Errorf("email service is disabled: %s", s.reason)
}

func (s *NoOpService) IsConfigured() bool {
	return false
}
