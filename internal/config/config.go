package config

import (
	"os"
	"strconv"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// RedisConfig holds settings for the Redis document store.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// MinIOConfig holds object storage settings for the deleted-document archive.
// The archive is disabled when Endpoint is empty.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether an archive endpoint was configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// AppConfig is the centralized configuration struct for the API server.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	LogLevel       string
	RequestTimeout time.Duration
	StoreBackend   string
	Database       DatabaseConfig
	Redis          RedisConfig
	MinIO          MinIOConfig
}

// ClientConfig configures the editor's sync session.
type ClientConfig struct {
	BaseURL        string
	LogLevel       string
	RequestTimeout time.Duration
	Debounce       time.Duration
	PollInterval   time.Duration
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"), // default only for non-sensitive value
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvMillis("REQUEST_TIMEOUT_MS", 5*time.Second),
		StoreBackend:   getEnv("STORE_BACKEND", BackendMemory),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "document:"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

// LoadClient reads the editor configuration from environment variables.
func LoadClient() *ClientConfig {
	return &ClientConfig{
		BaseURL:        getEnv("API_BASE_URL", "http://localhost:8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvMillis("REQUEST_TIMEOUT_MS", 5*time.Second),
		Debounce:       getEnvMillis("SYNC_DEBOUNCE_MS", time.Second),
		PollInterval:   getEnvMillis("SYNC_POLL_INTERVAL_MS", 10*time.Second),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvMillis reads a positive integer number of milliseconds.
func getEnvMillis(key string, def time.Duration) time.Duration {
	if ms := getEnvInt(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
