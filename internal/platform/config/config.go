package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime tunables. Values come from the environment so
// main stays lean and deployments stay twelve-factor.
type Config struct {
	Addr string

	RateLimit    RateLimitConfig
	Audit        AuditConfig
	Notification NotificationConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	PostgresDSN  string
}

// FailMode controls limiter behavior when the shared store is unreachable.
// This is explicit configuration, never inferred from error types.
type FailMode string

const (
	// FailOpen admits traffic when the store cannot be consulted.
	FailOpen FailMode = "open"
	// FailClosed denies traffic when the store cannot be consulted.
	FailClosed FailMode = "closed"
)

// IsValid checks if the fail mode is one of the supported values.
func (m FailMode) IsValid() bool {
	return m == FailOpen || m == FailClosed
}

// RateLimitConfig holds admission-control tunables.
type RateLimitConfig struct {
	Capacity     int           // permits per window per key
	Window       time.Duration // window length
	FailMode     FailMode      // behavior on store errors
	StoreTimeout time.Duration // per-call bound for the shared store
	Disabled     bool          // for testing/demo mode
}

// AuditConfig holds audit pipeline tunables.
type AuditConfig struct {
	BatchConcurrency int64         // global cap on in-flight audit writes
	WriteTimeout     time.Duration // per-write bound
}

// NotificationConfig holds notification dispatch tunables.
type NotificationConfig struct {
	SendTimeout time.Duration // per-attempt bound
}

// RedisConfig configures the shared-store client. An empty URL disables Redis
// and the in-process limiter variant is used instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit sink producer. Empty brokers disable it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	return Config{
		Addr: envString("USERGATE_ADDR", ":8080"),
		RateLimit: RateLimitConfig{
			Capacity:     envInt("RATELIMIT_CAPACITY", 100),
			Window:       envDuration("RATELIMIT_WINDOW", time.Minute),
			FailMode:     envFailMode("RATELIMIT_FAIL_MODE", FailOpen),
			StoreTimeout: envDuration("RATELIMIT_STORE_TIMEOUT", 100*time.Millisecond),
			Disabled:     os.Getenv("RATELIMIT_DISABLED") == "true",
		},
		Audit: AuditConfig{
			BatchConcurrency: int64(envInt("AUDIT_BATCH_CONCURRENCY", 8)),
			WriteTimeout:     envDuration("AUDIT_WRITE_TIMEOUT", 2*time.Second),
		},
		Notification: NotificationConfig{
			SendTimeout: envDuration("NOTIFY_SEND_TIMEOUT", 3*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    envList("KAFKA_BROKERS"),
			AuditTopic: envString("KAFKA_AUDIT_TOPIC", "usergate.audit"),
		},
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
}

func envString(key, fallback string) string {
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

func envFailMode(key string, fallback FailMode) FailMode {
	if m := FailMode(os.Getenv(key)); m.IsValid() {
		return m
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
