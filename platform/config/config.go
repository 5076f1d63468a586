// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// GeodesyConfig provides settings for the external geodesy transformation service.
type GeodesyConfig interface {
	GetGeodesyBaseURL() string
	GetGeodesyTimeout() time.Duration
	GetGeodesyMaxRetries() int
	GetGeodesyRateLimit() float64
	GetGeodesyConcurrency() int
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ImportConfig provides settings for the feature import pipeline.
type ImportConfig interface {
	GetImportDefaultBatchSize() int
	GetImportMaxBatchSize() int
	GetImportMaxFeatures() int
}

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	GeodesyBaseURL     string
	GeodesyTimeout     time.Duration
	GeodesyMaxRetries  int
	GeodesyRateLimit   float64
	GeodesyConcurrency int

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	ImportDefaultBatchSize int
	ImportMaxBatchSize     int
	ImportMaxFeatures      int
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// GeodesyConfig implementation
func (c *Config) GetGeodesyBaseURL() string        { return c.GeodesyBaseURL }
func (c *Config) GetGeodesyTimeout() time.Duration { return c.GeodesyTimeout }
func (c *Config) GetGeodesyMaxRetries() int        { return c.GeodesyMaxRetries }
func (c *Config) GetGeodesyRateLimit() float64     { return c.GeodesyRateLimit }
func (c *Config) GetGeodesyConcurrency() int       { return c.GeodesyConcurrency }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ImportConfig implementation
func (c *Config) GetImportDefaultBatchSize() int { return c.ImportDefaultBatchSize }
func (c *Config) GetImportMaxBatchSize() int     { return c.ImportMaxBatchSize }
func (c *Config) GetImportMaxFeatures() int      { return c.ImportMaxFeatures }

// Load reads configuration from the environment, with .env support for
// local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		GeodesyBaseURL:     getEnv("GEODESY_BASE_URL", "https://geodesy.geo.admin.ch/reframe"),
		GeodesyTimeout:     mustDuration(getEnv("GEODESY_TIMEOUT", "10s")),
		GeodesyMaxRetries:  mustInt(getEnv("GEODESY_MAX_RETRIES", "2")),
		GeodesyRateLimit:   mustFloat(getEnv("GEODESY_RATE_LIMIT", "20")),
		GeodesyConcurrency: mustInt(getEnv("GEODESY_CONCURRENCY", "4")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		ImportDefaultBatchSize: mustInt(getEnv("IMPORT_DEFAULT_BATCH_SIZE", "100")),
		ImportMaxBatchSize:     mustInt(getEnv("IMPORT_MAX_BATCH_SIZE", "1000")),
		ImportMaxFeatures:      mustInt(getEnv("IMPORT_MAX_FEATURES", "50000")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
