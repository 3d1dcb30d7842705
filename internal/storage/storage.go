package storage

import (
	"context"
	"io"
	"time"
)

// Object describes a stored archive entry
type Object struct {
	Key          string    `json:"key"`
	Bucket       string    `json:"bucket"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag,omitempty"`
}

// Storage defines the archive operations the sink depends on
type Storage interface {
	// Upload writes a blob under bucket/key
	Upload(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) (*Object, error)

	// Exists checks if a blob exists
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// EnsureBucket creates the bucket if it does not exist yet
	EnsureBucket(ctx context.Context, bucket string) error
}

// Provider is the interface archive backends must implement
type Provider interface {
	Storage
	Name() string
	Health(ctx context.Context) error
}
