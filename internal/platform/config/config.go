// Package config builds process configuration from environment variables so
// main stays lean. No config framework; every knob has a default that works
// for local development except secrets, which default to empty and are
// validated where they are consumed.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything cmd/server needs to wire the process.
type Config struct {
	// OpsAddr is the listen address for the ops HTTP server (health,
	// metrics, internal trigger endpoint).
	OpsAddr string

	// DatabaseURL is the PostgreSQL DSN. Empty means in-memory stores.
	DatabaseURL string

	Redis    RedisConfig
	Provider ProviderConfig
	Kafka    KafkaConfig
	Monitor  MonitorConfig

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is json or text.
	LogFormat string
}

// RedisConfig configures the shared Redis client used for per-subject run
// serialization. An empty URL disables Redis (single-process local locking).
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig configures the upstream screening data provider.
type ProviderConfig struct {
	BaseURL string
	// APIKey is required for live screening. Its absence is a
	// non-retryable configuration failure (not a startup failure, so the
	// process can still serve health and metrics).
	APIKey  string
	Timeout time.Duration
}

// KafkaConfig configures the outbox relay. Empty brokers disable relaying;
// events stay in the outbox table until a relay drains them.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// MonitorConfig configures the scheduled monitoring batch.
type MonitorConfig struct {
	// Interval between batch passes.
	Interval time.Duration
	// Concurrency bounds the per-subject fan-out within one pass. Sized to
	// the provider's rate limit.
	Concurrency int
	// Tenants lists the tenant IDs the scheduler batches. Empty disables
	// the scheduler; batches can still be triggered via the ops endpoint.
	Tenants []string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		OpsAddr:     envString("VIGIL_OPS_ADDR", ":9090"),
		DatabaseURL: os.Getenv("VIGIL_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("VIGIL_REDIS_URL"),
			PoolSize:     envInt("VIGIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VIGIL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("VIGIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VIGIL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VIGIL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			BaseURL: envString("VIGIL_PROVIDER_URL", "https://api.opensanctions.org"),
			APIKey:  os.Getenv("VIGIL_PROVIDER_API_KEY"),
			Timeout: envDuration("VIGIL_PROVIDER_TIMEOUT", 15*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     splitNonEmpty(os.Getenv("VIGIL_KAFKA_BROKERS")),
			TopicPrefix: envString("VIGIL_KAFKA_TOPIC_PREFIX", "vigil"),
		},
		Monitor: MonitorConfig{
			Interval:    envDuration("VIGIL_MONITOR_INTERVAL", 24*time.Hour),
			Concurrency: envInt("VIGIL_MONITOR_CONCURRENCY", 4),
			Tenants:     splitNonEmpty(os.Getenv("VIGIL_MONITOR_TENANTS")),
		},
		LogLevel:  envString("VIGIL_LOG_LEVEL", "info"),
		LogFormat: envString("VIGIL_LOG_FORMAT", "json"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitNonEmpty(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
