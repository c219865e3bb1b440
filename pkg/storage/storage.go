package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/storage/local"
	"github.com/feichai0017/document-chat/pkg/storage/minio"
	"github.com/feichai0017/document-chat/pkg/storage/s3"
)

// Storage holds uploaded documents between staging and cleanup.
type Storage interface {
	// Store writes reader under key and returns the stored key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes objects last modified before threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// LocalPather is implemented by backends whose objects already live on the
// local filesystem.
type LocalPather interface {
	Path(key string) (string, error)
}

// NewStorage creates the backend selected by cfg.Storage.Backend.
func NewStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (Storage, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		return local.NewLocalStorage(cfg.Storage.TempDir, log)
	case config.StorageS3:
		return s3.NewS3Storage(ctx, &cfg.S3, cfg.Storage.Prefix, log)
	case config.StorageMinio:
		return minio.NewMinioStorage(ctx, &cfg.Minio, cfg.Storage.Prefix, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Backend)
	}
}

// Materialize makes the object under key available as a local file. The
// returned cleanup removes any temporary copy; it never deletes the object.
func Materialize(ctx context.Context, store Storage, key string) (string, func() error, error) {
	noop := func() error { return nil }

	if lp, ok := store.(LocalPather); ok {
		p, err := lp.Path(key)
		if err != nil {
			return "", noop, err
		}
		return p, noop, nil
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		return "", noop, err
	}
	defer rc.Close()

	// keep the extension, processors dispatch on it
	tmp, err := os.CreateTemp("", "document-*"+path.Ext(key))
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() error {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to download %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to write temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}
