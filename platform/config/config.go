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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq-backed recheck scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CacheBusConfig provides settings for Redis cache invalidation.
type CacheBusConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetCacheBusChannel() string
	IsCacheBusEnabled() bool
}

// QualificationConfig provides settings for the scoring and cadence engine.
type QualificationConfig interface {
	GetScoringConfigPath() string
	GetStrategyCacheTTL() time.Duration
	GetStrategyCacheSize() int
	IsStrictCadenceEnforcement() bool
	IsEligibilityRecheckEnabled() bool
}

// MetricsConfig provides settings for Prometheus metrics exposure.
type MetricsConfig interface {
	GetMetricsNamespace() string
	IsMetricsEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	CacheBusChannel          string
	ScoringConfigPath        string
	StrategyCacheTTL         time.Duration
	StrategyCacheSize        int
	StrictCadenceEnforcement bool
	EligibilityRecheck       bool
	MetricsEnabled           bool
	MetricsNamespace         string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig / CacheBusConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetCacheBusChannel() string { return c.CacheBusChannel }
func (c *Config) IsCacheBusEnabled() bool    { return c.RedisURL != "" }

// QualificationConfig implementation
func (c *Config) GetScoringConfigPath() string       { return c.ScoringConfigPath }
func (c *Config) GetStrategyCacheTTL() time.Duration { return c.StrategyCacheTTL }
func (c *Config) GetStrategyCacheSize() int          { return c.StrategyCacheSize }
func (c *Config) IsStrictCadenceEnforcement() bool   { return c.StrictCadenceEnforcement }
func (c *Config) IsEligibilityRecheckEnabled() bool {
	return c.EligibilityRecheck && c.RedisURL != ""
}

// MetricsConfig implementation
func (c *Config) GetMetricsNamespace() string { return c.MetricsNamespace }
func (c *Config) IsMetricsEnabled() bool      { return c.MetricsEnabled }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "qualification"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		CacheBusChannel:          getEnv("CACHE_BUS_CHANNEL", "qualification:invalidate"),
		ScoringConfigPath:        getEnv("SCORING_CONFIG_PATH", ""),
		StrategyCacheTTL:         mustDuration(getEnv("CADENCE_STRATEGY_CACHE_TTL", "30s")),
		StrategyCacheSize:        mustInt(getEnv("CADENCE_STRATEGY_CACHE_SIZE", "64")),
		StrictCadenceEnforcement: strings.EqualFold(getEnv("CADENCE_STRICT_ENFORCEMENT", "false"), "true"),
		EligibilityRecheck:       strings.EqualFold(getEnv("ELIGIBILITY_RECHECK_ENABLED", "true"), "true"),
		MetricsEnabled:           strings.EqualFold(getEnv("METRICS_ENABLED", "true"), "true"),
		MetricsNamespace:         getEnv("METRICS_NAMESPACE", "lead_qualification"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	// The TTL is the only bound on how long other replicas serve a changed
	// strategy when a cache bus message is missed, so it must expire.
	if cfg.StrategyCacheTTL < time.Second {
		return nil, fmt.Errorf("CADENCE_STRATEGY_CACHE_TTL must be a duration of at least 1s")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
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
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
