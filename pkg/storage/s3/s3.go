package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// API is the subset of the S3 client the storage uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Storage stages documents in an S3 bucket, optionally S3-compatible via Endpoint.
type S3Storage struct {
	client     API
	bucketName string
	prefix     string
	logger     logger.Logger
}

func NewS3Storage(ctx context.Context, cfg *appconfig.S3Config, prefix string, log logger.Logger) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return nil, fmt.Errorf("s3 head bucket %s: %w", cfg.BucketName, err)
	}

	log.Info("S3 staging ready",
		logger.String("bucket", cfg.BucketName),
		logger.String("region", cfg.Region),
	)
	return NewWithClient(client, cfg.BucketName, prefix, log), nil
}

func NewWithClient(client API, bucket, prefix string, log logger.Logger) *S3Storage {
	return &S3Storage{client: client, bucketName: bucket, prefix: prefix, logger: log}
}

func (s *S3Storage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	in := &s3.PutObjectInput{Bucket: aws.String(s.bucketName), Key: aws.String(key), Body: reader}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", s.objectErr("put", key, err)
	}
	return key, nil
}

func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucketName), Key: aws.String(key)})
	if err != nil {
		return nil, s.objectErr("get", key, err)
	}
	return out.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	in := &s3.DeleteObjectInput{Bucket: aws.String(s.bucketName), Key: aws.String(key)}
	if _, err := s.client.DeleteObject(ctx, in); err != nil {
		return s.objectErr("delete", key, err)
	}
	return nil
}

func (s *S3Storage) objectErr(op, key string, err error) error {
	s.logger.Error("S3 object operation failed",
		logger.String("op", op),
		logger.String("bucket", s.bucketName),
		logger.String("key", key),
		logger.Error(err),
	)
	return fmt.Errorf("s3 %s %s/%s: %w", op, s.bucketName, key, err)
}

// CleanupBefore deletes objects under the staging prefix older than threshold.
func (s *S3Storage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucketName)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	removed := 0
	pages := s3.NewListObjectsV2Paginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return s.objectErr("list", s.prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil || !obj.LastModified.Before(threshold) {
				continue
			}
			if s.Delete(ctx, *obj.Key) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		s.logger.Info("Swept expired staged objects",
			logger.String("bucket", s.bucketName),
			logger.Int("count", removed),
		)
	}
	return nil
}
