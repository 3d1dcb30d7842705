package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/detectext/detectext/internal/config"
)

// Service wraps an archive provider with the configured bucket and limits.
type Service struct {
	Provider Provider
	config   *config.StorageConfig
}

// NewService creates an archive service based on configuration
func NewService(cfg *config.StorageConfig) (*Service, error) {
	var provider Provider
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "local":
		provider, err = NewLocalStorage(cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}

	case "s3":
		// Endpoint decides SSL: plain http means a local MinIO
		useSSL := true
		endpoint := cfg.S3Endpoint
		if strings.HasPrefix(endpoint, "http://") {
			useSSL = false
		}
		endpoint = strings.TrimPrefix(endpoint, "https://")
		endpoint = strings.TrimPrefix(endpoint, "http://")
		if endpoint == "" {
			endpoint = "s3.amazonaws.com"
			useSSL = true
		}

		provider, err = NewS3Storage(
			endpoint,
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			cfg.S3Region,
			useSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}

	return &Service{
		Provider: provider,
		config:   cfg,
	}, nil
}

// Bucket returns the configured archive bucket
func (s *Service) Bucket() string {
	return s.config.Bucket
}

// EnsureBucket makes sure the archive bucket exists
func (s *Service) EnsureBucket(ctx context.Context) error {
	return s.Provider.EnsureBucket(ctx, s.config.Bucket)
}

// Archive writes a payload under the given key in the archive bucket
func (s *Service) Archive(ctx context.Context, key string, payload []byte, contentType string) error {
	_, err := s.Provider.Upload(ctx, s.config.Bucket, key, bytes.NewReader(payload), int64(len(payload)), contentType)
	return err
}

// Exists checks whether an archive entry exists
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	return s.Provider.Exists(ctx, s.config.Bucket, key)
}

// MaxUploadSize returns the maximum allowed upload size
func (s *Service) MaxUploadSize() int64 {
	return s.config.MaxUploadSize
}

// ValidateUploadSize checks if the upload size is within limits
func (s *Service) ValidateUploadSize(size int64) error {
	if size > s.config.MaxUploadSize {
		return fmt.Errorf("file size %d exceeds maximum allowed size %d", size, s.config.MaxUploadSize)
	}
	return nil
}

// Name returns the name of the archive provider
func (s *Service) Name() string {
	return s.Provider.Name()
}

// Health checks the archive provider
func (s *Service) Health(ctx context.Context) error {
	return s.Provider.Health(ctx)
}
