package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Classifier ClassifierConfig `yaml:"classifier"`
	NER        NERConfig        `yaml:"ner"`
	OCR        OCRConfig        `yaml:"ocr"`
	Textract   TextractConfig   `yaml:"textract"`
	Storage    StorageConfig    `yaml:"storage"`
	S3         S3Config         `yaml:"s3"`
	Minio      MinioConfig      `yaml:"minio"`
	Queue      QueueConfig      `yaml:"queue"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	HealthAddr      string        `yaml:"healthAddr"` // gRPC health server, disabled when empty
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
	Development bool     `yaml:"development"`
}

type OllamaConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	NumCtx      int           `yaml:"numCtx"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
	PoolSize    int           `yaml:"poolSize"`
}

type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type NERConfig struct {
	// ModelPath points at a prose model directory; the bundled model is used when empty.
	ModelPath string `yaml:"modelPath"`
	ModelName string `yaml:"modelName"`
}

type PipelineConfig struct {
	Workers             int  `yaml:"workers"`
	SummaryLength       int  `yaml:"summaryLength"`
	BackgroundReextract bool `yaml:"backgroundReextract"`
}

// Get returns the process-wide configuration, loading it on first use.
// A broken configuration is fatal.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load()
	})
	if loadErr != nil {
		log.Fatalf("config: %v", loadErr)
	}
	return instance
}

// Load builds a fresh Config from .env, the environment and the optional
// YAML file named by CONFIG_FILE, in that order of precedence (lowest first).
func Load() (*Config, error) {
	loadDotEnv()

	cfg := fromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() {
	envPath := os.Getenv("ENV_FILE")
	if envPath == "" {
		_, filename, _, _ := runtime.Caller(0)
		envPath = filepath.Join(filepath.Dir(filepath.Dir(filename)), ".env")
	}
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
	}
}

func fromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8000"),
			HealthAddr:      getEnv("HEALTH_ADDR", ""),
			MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowOrigins:    getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Encoding:    getEnv("LOG_ENCODING", "json"),
			OutputPaths: getEnvList("LOG_OUTPUT", []string{"stdout", "logs/app.log"}),
			Development: getEnvBool("LOG_DEVELOPMENT", false),
		},
		Ollama: OllamaConfig{
			Endpoint:    getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
			Model:       getEnv("OLLAMA_MODEL", "tinyllama"),
			NumCtx:      getEnvInt("OLLAMA_NUM_CTX", 2048),
			Temperature: getEnvFloat("OLLAMA_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("OLLAMA_MAX_TOKENS", 256),
			Timeout:     getEnvDuration("OLLAMA_TIMEOUT", 2*time.Minute),
			PoolSize:    getEnvInt("OLLAMA_POOL_SIZE", 4),
		},
		Classifier: ClassifierConfig{
			Endpoint: getEnv("CLASSIFIER_ENDPOINT", "http://localhost:8500"),
			Timeout:  getEnvDuration("CLASSIFIER_TIMEOUT", time.Minute),
		},
		NER: NERConfig{
			ModelPath: getEnv("NER_MODEL_PATH", ""),
			ModelName: getEnv("NER_MODEL_NAME", ""),
		},
		OCR: OCRConfig{
			Engine:          getEnv("OCR_ENGINE", OCREngineTesseract),
			Languages:       getEnvList("OCR_LANGUAGES", []string{"eng"}),
			DPI:             getEnvFloat("OCR_DPI", 200),
			Preprocess:      getEnvBool("OCR_PREPROCESS", true),
			PageConcurrency: getEnvInt("OCR_PAGE_CONCURRENCY", 4),
		},
		Textract: TextractConfig{
			Region:    getEnv("AWS_REGION", ""),
			Endpoint:  getEnv("AWS_ENDPOINT", ""),
			AccessKey: getEnv("AWS_ACCESS_KEY", ""),
			SecretKey: getEnv("AWS_SECRET_KEY", ""),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", StorageLocal),
			TempDir:       getEnv("STORAGE_TEMP_DIR", filepath.Join(os.TempDir(), "document-chat")),
			Prefix:        getEnv("STORAGE_PREFIX", "uploads/"),
			Retention:     getEnvDuration("STORAGE_RETENTION", time.Hour),
			SweepInterval: getEnvDuration("STORAGE_SWEEP_INTERVAL", 10*time.Minute),
		},
		S3: S3Config{
			BucketName: getEnv("AWS_S3_BUCKET_NAME", ""),
			Region:     getEnv("AWS_REGION", ""),
			Endpoint:   getEnv("AWS_ENDPOINT", ""),
			AccessKey:  getEnv("AWS_ACCESS_KEY", ""),
			SecretKey:  getEnv("AWS_SECRET_KEY", ""),
		},
		Minio: MinioConfig{
			AccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:  getEnv("MINIO_SECRET_KEY", ""),
			Endpoint:   getEnv("MINIO_ENDPOINT", ""),
			UseSSL:     getEnvBool("MINIO_USE_SSL", false),
			Region:     getEnv("MINIO_REGION", ""),
			BucketName: getEnv("MINIO_BUCKET_NAME", ""),
		},
		Queue: QueueConfig{
			Backend:        getEnv("QUEUE_BACKEND", QueueInline),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getEnvInt("REDIS_DB", 0),
			Concurrency:    getEnvInt("QUEUE_CONCURRENCY", 5),
			MaxRetry:       getEnvInt("QUEUE_MAX_RETRY", 3),
			Timeout:        getEnvDuration("QUEUE_TASK_TIMEOUT", 10*time.Minute),
			EmbeddedWorker: getEnvBool("QUEUE_EMBEDDED_WORKER", false),
		},
		Pipeline: PipelineConfig{
			Workers:             getEnvInt("PIPELINE_WORKERS", runtime.NumCPU()),
			SummaryLength:       getEnvInt("PIPELINE_SUMMARY_LENGTH", 300),
			BackgroundReextract: getEnvBool("BACKGROUND_REEXTRACT", true),
		},
	}
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageLocal, StorageS3, StorageMinio:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Queue.Backend {
	case QueueInline, QueueAsynq:
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	switch c.OCR.Engine {
	case OCREngineTesseract, OCREngineTextract:
	default:
		return fmt.Errorf("unknown ocr engine %q", c.OCR.Engine)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.SummaryLength < 0 {
		return fmt.Errorf("summary length must not be negative")
	}
	if c.OCR.DPI <= 0 {
		return fmt.Errorf("ocr dpi must be positive")
	}
	if c.Ollama.PoolSize < 1 {
		c.Ollama.PoolSize = 1
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
