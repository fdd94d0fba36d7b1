package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Storage backends.
const (
	BackendGCS = "gcs"
	BackendS3  = "s3"
)

// Model load modes.
const (
	LoadModeSync       = "sync"
	LoadModeBackground = "background"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"5000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StorageBackend string `env:"STORAGE_BACKEND" default:"gcs"`
	StorageBucket  string `env:"STORAGE_BUCKET" default:"ordernpickapp.firebasestorage.app"`
	StorageFolder  string `env:"STORAGE_FOLDER" default:"SentimentAnalysis"`

	// FirebaseCredentials holds serialized service-account JSON and wins over the file path.
	FirebaseCredentials     string `env:"FIREBASE_CREDENTIALS"`
	FirebaseCredentialsPath string `env:"FIREBASE_CREDENTIALS_PATH" default:"firebase-credentials.json"`

	S3Region   string `env:"S3_REGION" default:"us-east-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`

	ModelCacheDir string `env:"MODEL_CACHE_DIR" default:"cached_model"`
	ModelLoadMode string `env:"MODEL_LOAD_MODE" default:"sync"`

	DownloadMaxAttempts    int           `env:"DOWNLOAD_MAX_ATTEMPTS" default:"3"`
	DownloadInitialBackoff time.Duration `env:"DOWNLOAD_INITIAL_BACKOFF" default:"1s"`

	BatchConcurrency int `env:"BATCH_CONCURRENCY" default:"1"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" default:"20"`
	MaxBodySize        string   `env:"MAX_BODY_SIZE" default:"1M"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"PORT":            cfg.Port,
		"STORAGE_BUCKET":  cfg.StorageBucket,
		"STORAGE_FOLDER":  cfg.StorageFolder,
		"MODEL_CACHE_DIR": cfg.ModelCacheDir,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if !slices.Contains([]string{BackendGCS, BackendS3}, cfg.StorageBackend) {
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendGCS, BackendS3, cfg.StorageBackend)
	}
	if !slices.Contains([]string{LoadModeSync, LoadModeBackground}, cfg.ModelLoadMode) {
		return fmt.Errorf("MODEL_LOAD_MODE must be %q or %q, got %q", LoadModeSync, LoadModeBackground, cfg.ModelLoadMode)
	}

	if cfg.DownloadMaxAttempts < 1 {
		return errors.New("DOWNLOAD_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.DownloadInitialBackoff < 0 {
		return errors.New("DOWNLOAD_INITIAL_BACKOFF must not be negative")
	}
	if cfg.BatchConcurrency < 1 {
		return errors.New("BATCH_CONCURRENCY must be at least 1")
	}
	if cfg.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS must not be negative")
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	return nil
}
