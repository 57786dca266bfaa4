package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean.
type Config struct {
	Addr string

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Contact  ContactConfig
}

// PostgresConfig holds the storage collaborator settings.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds connection settings for the OTP / token cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the audit outbox relay settings. Empty brokers disable
// the relay; audit entries still land in the store.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// ContactConfig holds contact-verification settings.
type ContactConfig struct {
	EmailTokenSigningKey string
	EmailTokenTTL        time.Duration
	OTPTTL               time.Duration
	OTPMaxAttempts       int
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr: envString("VERANDA_ADDR", ":8080"),
		Postgres: PostgresConfig{
			DSN:             os.Getenv("VERANDA_POSTGRES_DSN"),
			MaxOpenConns:    envInt("VERANDA_POSTGRES_MAX_OPEN", 25),
			MaxIdleConns:    envInt("VERANDA_POSTGRES_MAX_IDLE", 5),
			ConnMaxLifetime: envDuration("VERANDA_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("VERANDA_REDIS_URL"),
			PoolSize:     envInt("VERANDA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VERANDA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("VERANDA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VERANDA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VERANDA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    envList("VERANDA_KAFKA_BROKERS"),
			AuditTopic: envString("VERANDA_KAFKA_AUDIT_TOPIC", "veranda.audit"),
		},
		Contact: ContactConfig{
			EmailTokenSigningKey: envString("VERANDA_EMAIL_TOKEN_KEY", "dev-secret-key-change-in-production"),
			EmailTokenTTL:        envDuration("VERANDA_EMAIL_TOKEN_TTL", 24*time.Hour),
			OTPTTL:               envDuration("VERANDA_OTP_TTL", 10*time.Minute),
			OTPMaxAttempts:       envInt("VERANDA_OTP_MAX_ATTEMPTS", 5),
		},
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
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
