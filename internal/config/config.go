// Package config loads service configuration from the environment.
// Everything downstream receives an explicit *Config; nothing reads env
// vars ad hoc, which keeps backend selection and timeouts testable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort       string
	CORSOrigins    []string
	RequestTimeout time.Duration

	// Postgres
	DatabaseURL string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Queue
	QueuePrefix             string
	QueueCompletedRetention int
	QueueFailedRetention    int
	EnqueueTimeout          time.Duration
	OrphanThreshold         time.Duration

	// Event bus. A non-empty topic ARN selects the SNS backend for the
	// whole process; otherwise the Redis queue is used.
	EventBusTopicARN string
	AWSRegion        string
	AWSAccessKey     string
	AWSSecretKey     string
	AWSEndpoint      string

	// Storage
	StorageProvider  string
	StorageLocalRoot string
	S3Bucket         string
	S3UsePathStyle   bool

	// Rendering
	RendererBaseURL string
	WorkerCount     int

	// Credits
	CreditTimezone string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		CORSOrigins:    splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		RequestTimeout: getEnvDuration("HTTP_REQUEST_TIMEOUT", 60*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QueuePrefix:             getEnv("QUEUE_PREFIX", "burnq"),
		QueueCompletedRetention: getEnvInt("QUEUE_COMPLETED_RETENTION", 1000),
		QueueFailedRetention:    getEnvInt("QUEUE_FAILED_RETENTION", 5000),
		EnqueueTimeout:          getEnvDuration("QUEUE_ENQUEUE_TIMEOUT", 5*time.Second),
		OrphanThreshold:         getEnvDuration("QUEUE_ORPHAN_THRESHOLD", 15*time.Minute),

		EventBusTopicARN: os.Getenv("EVENT_BUS_TOPIC_ARN"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSEndpoint:      os.Getenv("AWS_ENDPOINT"),

		StorageProvider:  getEnv("STORAGE_PROVIDER", "localfs"),
		StorageLocalRoot: getEnv("STORAGE_LOCAL_ROOT", "/var/lib/subburner"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3UsePathStyle:   getEnvBool("S3_USE_PATH_STYLE", false),

		RendererBaseURL: getEnv("RENDERER_BASE_URL", "http://localhost:9090"),
		WorkerCount:     getEnvInt("WORKER_COUNT", 2),

		CreditTimezone: getEnv("CREDIT_TIMEZONE", "UTC"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StorageProvider == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required with STORAGE_PROVIDER=s3")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
