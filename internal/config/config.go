// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	CORSOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Database. An empty URL serves listings from object storage alone.
	DatabaseURL    string
	DatabaseDriver string

	// Storage
	StorageBackend   string
	S3Endpoint       string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3Region         string
	S3UseSSL         bool
	LocalStoragePath string

	// Limits
	MaxUploadSize    int64
	ListingCacheSize int

	// Auth. Empty leaves the API open.
	JWTSecret string
}

// Load reads configuration from environment variables with defaults. A
// .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		CORSOrigins:      envList("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		DatabaseURL:      envOr("DATABASE_URL", ""),
		DatabaseDriver:   envOr("DATABASE_DRIVER", "postgres"),
		StorageBackend:   envOr("STORAGE_BACKEND", "s3"),
		S3Endpoint:       envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:         envOr("S3_BUCKET", "novacode"),
		S3AccessKey:      envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:         envOr("S3_REGION", "us-east-1"),
		S3UseSSL:         envBool("S3_USE_SSL", false),
		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "./data/storage"),
		MaxUploadSize:    envInt64("MAX_UPLOAD_SIZE", 10*1024*1024),
		ListingCacheSize: int(envInt64("LISTING_CACHE_SIZE", 256)),
		JWTSecret:        envOr("JWT_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In("postgres", "pgx")),
		validation.Field(&c.StorageBackend, validation.Required, validation.In("s3", "minio", "local")),
		validation.Field(&c.S3Bucket, validation.When(c.StorageBackend != "local", validation.Required)),
		validation.Field(&c.S3Endpoint, validation.When(c.StorageBackend == "minio", validation.Required)),
		validation.Field(&c.LocalStoragePath, validation.When(c.StorageBackend == "local", validation.Required)),
		validation.Field(&c.MaxUploadSize, validation.Min(int64(1))),
		validation.Field(&c.ListingCacheSize, validation.Min(1)),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(envOr(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
