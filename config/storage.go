package config

import "time"

const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageMinio = "minio"

	QueueInline = "inline"
	QueueAsynq  = "asynq"
)

// StorageConfig selects where uploads are staged for the lifetime of a request.
type StorageConfig struct {
	Backend       string        `yaml:"backend"`
	TempDir       string        `yaml:"tempDir"`
	Prefix        string        `yaml:"prefix"`
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type S3Config struct {
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
}

type MinioConfig struct {
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"useSSL"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucketName"`
}

// QueueConfig configures the scheduler that runs the post-response cleanup pass.
type QueueConfig struct {
	Backend        string        `yaml:"backend"`
	RedisAddr      string        `yaml:"redisAddr"`
	RedisPassword  string        `yaml:"redisPassword"`
	RedisDB        int           `yaml:"redisDB"`
	Concurrency    int           `yaml:"concurrency"`
	MaxRetry       int           `yaml:"maxRetry"`
	Timeout        time.Duration `yaml:"timeout"`
	EmbeddedWorker bool          `yaml:"embeddedWorker"`
}
