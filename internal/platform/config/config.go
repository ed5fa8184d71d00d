// Package config builds service configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strs "driftgate/pkg/platform/strings"
)

// RedisConfig carries connection tuning for the preference store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries the audit sink settings. Empty brokers means the sink
// is disabled and events stay in the local store.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Server captures all service-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// AdminSecret is exchanged for workspace tokens. Only its bcrypt hash is
	// kept in memory after startup.
	AdminSecret string

	// Workspace is the organization this deployment watches.
	Workspace string

	// PolicyFile optionally seeds workspace targets at startup.
	PolicyFile string

	// PostgresURL backs the target store when set; empty falls back to the
	// in-memory store for development.
	PostgresURL string

	// AuditDBURL backs the audit event store when set.
	AuditDBURL string

	// AnalysisConcurrency bounds concurrent repository analyses in a fleet
	// run.
	AnalysisConcurrency int

	// DispatchTimeout bounds each external status/remediation call.
	DispatchTimeout time.Duration

	// RateLimit caps authenticated requests per workspace within
	// RateLimitWindow. Zero disables rate limiting.
	RateLimit       int
	RateLimitWindow time.Duration

	Redis RedisConfig
	Kafka KafkaConfig
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:                envOr("DRIFTGATE_ADDR", ":8080"),
		JWTSigningKey:       envOr("DRIFTGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminSecret:         envOr("DRIFTGATE_ADMIN_SECRET", "dev-admin-secret"),
		Workspace:           envOr("DRIFTGATE_WORKSPACE", "local"),
		PolicyFile:          os.Getenv("DRIFTGATE_POLICY_FILE"),
		PostgresURL:         os.Getenv("DRIFTGATE_POSTGRES_URL"),
		AuditDBURL:          os.Getenv("DRIFTGATE_AUDIT_DB_URL"),
		AnalysisConcurrency: envInt("DRIFTGATE_ANALYSIS_CONCURRENCY", 2),
		DispatchTimeout:     envDuration("DRIFTGATE_DISPATCH_TIMEOUT", 10*time.Second),
		RateLimit:           envInt("DRIFTGATE_RATE_LIMIT", 120),
		RateLimitWindow:     envDuration("DRIFTGATE_RATE_LIMIT_WINDOW", time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("DRIFTGATE_REDIS_URL"),
			PoolSize:     envInt("DRIFTGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("DRIFTGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("DRIFTGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("DRIFTGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("DRIFTGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("DRIFTGATE_KAFKA_TOPIC", "driftgate.audit"),
		},
	}
	if brokers := os.Getenv("DRIFTGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strs.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
