package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/detectext/detectext/internal/config"
	"github.com/rs/zerolog/log"
)

// SESService handles email sending via AWS SES
type SESService struct {
	config *config.EmailConfig
	client *ses.Client
}

// NewSESService creates a new AWS SES email service
func NewSESService(cfg *config.EmailConfig) (*SESService, error) {
	if cfg.SESRegion == "" {
		return nil, fmt.Errorf("AWS SES region is required")
	}

	// Static credentials from configuration win; otherwise the SDK default
	// chain (environment, shared config, IAM role) supplies them
	var awsConfig aws.Config
	if cfg.SESAccessKey != "" && cfg.SESSecretKey != "" {
		awsConfig = aws.Config{
			Region: cfg.SESRegion,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.SESAccessKey,
				cfg.SESSecretKey,
				"",
			),
		}
	} else {
		loaded, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.SESRegion),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		awsConfig = loaded
	}

	return &SESService{
		config: cfg,
		client: ses.NewFromConfig(awsConfig),
	}, nil
}

// Send sends a plain-text email via AWS SES
func (s *SESService) Send(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if s.config.ReplyToAddress != "" {
		input.ReplyToAddresses = []string{s.config.ReplyToAddress}
	}

	output, err := s.client.SendEmail(ctx, input)
	if err != nil {
		log.Error().
			Err(err).
			Str("to", to).
			Str("subject", subject).
			Msg("Failed to send email via AWS SES")
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info().
		Str("to", to).
		Str("subject", subject).
		Str("message_id", aws.ToString(output.MessageId)).
		Msg("Email sent via AWS SES")

	return nil
}

// IsConfigured reports whether the service can send
func (s *SESService) IsConfigured() bool {
	return true
}
