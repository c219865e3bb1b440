package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// MinioStorage stages documents in a MinIO bucket.
type MinioStorage struct {
	client     *minio.Client
	bucketName string
	prefix     string
	logger     logger.Logger
}

func NewMinioStorage(ctx context.Context, cfg *config.MinioConfig, prefix string, log logger.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("minio bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", cfg.BucketName, err)
		}
		log.Info("Staging bucket created", logger.String("bucket", cfg.BucketName))
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     prefix,
		logger:     log,
	}, nil
}

func (m *MinioStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	if _, err := m.client.PutObject(ctx, m.bucketName, key, reader, -1, minio.PutObjectOptions{}); err != nil {
		return "", m.objectErr("put", key, err)
	}
	return key, nil
}

func (m *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.objectErr("get", key, err)
	}
	return obj, nil
}

func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return m.objectErr("remove", key, err)
	}
	return nil
}

func (m *MinioStorage) objectErr(op, key string, err error) error {
	m.logger.Error("MinIO object operation failed",
		logger.String("op", op),
		logger.String("bucket", m.bucketName),
		logger.String("key", key),
		logger.Error(err),
	)
	return fmt.Errorf("minio %s %s/%s: %w", op, m.bucketName, key, err)
}

// CleanupBefore deletes objects under the staging prefix older than threshold.
func (m *MinioStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    m.prefix,
		Recursive: true,
	})

	removed := 0
	for obj := range objectCh {
		if obj.Err != nil {
			return m.objectErr("list", m.prefix, obj.Err)
		}
		if obj.LastModified.Before(threshold) && m.Delete(ctx, obj.Key) == nil {
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("Swept expired staged objects",
			logger.String("bucket", m.bucketName),
			logger.Int("count", removed),
		)
	}
	return nil
}
