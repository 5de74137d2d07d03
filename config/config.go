package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StoreJSONFile = "jsonfile"

	BlobLocal = "local"
	BlobS3    = "s3"
)

type Config struct {
	Port     int
	DataDir  string
	LogLevel string

	ScratchDir           string
	QueueConcurrency     int
	QueueMaxRetries      int
	QueueRetryBaseDelay  time.Duration
	BatchChunkSize       int
	StageTimeout         time.Duration
	StaleProcessingAfter time.Duration

	StoreDriver string

	BlobDriver  string
	BlobDir     string
	BlobBaseURL string

	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3PublicBaseURL   string
	S3AccessKeyID     string
	S3AccessKeySecret string

	AdminPasswordHash string
	AuthSecret        string
	BehindProxy       bool

	RedisURL string

	FFmpegPath  string
	FFprobePath string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "7890"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	concurrency, err := positiveInt("QUEUE_CONCURRENCY", "2")
	if err != nil {
		return nil, err
	}

	maxRetries, err := positiveInt("QUEUE_MAX_RETRIES", "3")
	if err != nil {
		return nil, err
	}

	chunkSize, err := positiveInt("BATCH_CHUNK_SIZE", "3")
	if err != nil {
		return nil, err
	}

	retryBaseDelay, err := time.ParseDuration(getEnv("QUEUE_RETRY_BASE_DELAY", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_RETRY_BASE_DELAY: %w", err)
	}

	stageTimeout, err := time.ParseDuration(getEnv("STAGE_TIMEOUT", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STAGE_TIMEOUT: %w", err)
	}

	staleAfter, err := time.ParseDuration(getEnv("STALE_PROCESSING_AFTER", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_PROCESSING_AFTER: %w", err)
	}

	behindProxy, err := strconv.ParseBool(getEnv("BEHIND_PROXY", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid BEHIND_PROXY: %w", err)
	}

	dataDir := getEnv("DATA_DIR", "/data")

	cfg := &Config{
		Port:     port,
		DataDir:  dataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ScratchDir:           getEnv("SCRATCH_DIR", os.TempDir()),
		QueueConcurrency:     concurrency,
		QueueMaxRetries:      maxRetries,
		QueueRetryBaseDelay:  retryBaseDelay,
		BatchChunkSize:       chunkSize,
		StageTimeout:         stageTimeout,
		StaleProcessingAfter: staleAfter,

		StoreDriver: getEnv("STORE_DRIVER", StoreSQLite),

		BlobDriver:  getEnv("BLOB_DRIVER", BlobLocal),
		BlobDir:     getEnv("BLOB_DIR", filepath.Join(dataDir, "blobs")),
		BlobBaseURL: getEnv("BLOB_BASE_URL", fmt.Sprintf("http://localhost:%d/blobs", port)),

		S3BucketName:      os.Getenv("S3_BUCKET_NAME"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3AccessKeySecret: os.Getenv("S3_ACCESS_KEY_SECRET"),

		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AuthSecret:        os.Getenv("AUTH_SECRET"),
		BehindProxy:       behindProxy,

		RedisURL: os.Getenv("REDIS_URL"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreSQLite, StoreJSONFile:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", c.StoreDriver, StoreSQLite, StoreJSONFile)
	}

	switch c.BlobDriver {
	case BlobLocal:
	case BlobS3:
		if c.S3BucketName == "" {
			return fmt.Errorf("S3_BUCKET_NAME is required when BLOB_DRIVER=s3")
		}
	default:
		return fmt.Errorf("invalid BLOB_DRIVER %q: want %s or %s", c.BlobDriver, BlobLocal, BlobS3)
	}
	return nil
}

func positiveInt(key, defaultValue string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s: must be at least 1, got %d", key, n)
	}
	return n, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
