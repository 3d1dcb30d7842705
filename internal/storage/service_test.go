package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detectext/detectext/internal/config"
)

func TestNewService_Local(t *testing.T) {
	svc, err := NewService(&config.StorageConfig{
		Provider:      "local",
		LocalPath:     t.TempDir(),
		Bucket:        "detecttext-archive",
		MaxUploadSize: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "local", svc.Name())
	assert.Equal(t, "detecttext-archive", svc.Bucket())
	assert.Equal(t, int64(1024), svc.MaxUploadSize())
}

func TestNewService_UnsupportedProvider(t *testing.T) {
	_, err := NewService(&config.StorageConfig{Provider: "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage provider")
}

func TestService_ArchiveAndExists(t *testing.T) {
	svc, err := NewService(&config.StorageConfig{
		Provider:      "local",
		LocalPath:     t.TempDir(),
		Bucket:        "archive",
		MaxUploadSize: 1 << 20,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.EnsureBucket(ctx))
	require.NoError(t, svc.Archive(ctx, "upload-1", []byte("image bytes"), "image/png"))

	exists, err := svc.Exists(ctx, "upload-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(ctx, "upload-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestService_ValidateUploadSize(t *testing.T) {
	svc, err := NewService(&config.StorageConfig{
		Provider:      "local",
		LocalPath:     t.TempDir(),
		Bucket:        "archive",
		MaxUploadSize: 100,
	})
	require.NoError(t, err)

	assert.NoError(t, svc.ValidateUploadSize(100))
	assert.Error(t, svc.ValidateUploadSize(101))
}

func TestService_Health(t *testing.T) {
	svc, err := NewService(&config.StorageConfig{
		Provider:  "local",
		LocalPath: t.TempDir(),
		Bucket:    "archive",
	})
	require.NoError(t, err)
	assert.NoError(t, svc.Health(context.Background()))
}
