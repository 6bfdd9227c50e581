package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment-driven configuration. Every field has a dev
// default so a bare `go run` comes up against in-memory backends.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Pipeline Pipeline
	Review   Review
	Offline  Offline
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres captures connection settings for the durable stores. An empty URL
// selects the in-memory stores.
type Postgres struct {
	URL         string
	MaxConns    int32
	ConnTimeout time.Duration
}

// Redis captures settings for the policy cache and the streams transport. An
// empty URL disables both.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the event transport settings. Empty brokers select the
// in-process channel transport.
type Kafka struct {
	Brokers []string
	Topic   string
	Group   string
}

// Pipeline captures executor tuning.
type Pipeline struct {
	StageTimeout time.Duration
}

// Review captures the SLA sweeper cadence.
type Review struct {
	EscalationInterval time.Duration
}

// Offline captures reconciliation worker settings.
type Offline struct {
	SyncCapacityPerMinute int
}

// FromEnv builds the configuration from environment variables so main stays
// lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envString("VERIDOC_ADDR", ":8080"),
			JWTSigningKey: envString("VERIDOC_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL:         os.Getenv("VERIDOC_POSTGRES_URL"),
			MaxConns:    int32(envInt("VERIDOC_POSTGRES_MAX_CONNS", 10)),
			ConnTimeout: envDuration("VERIDOC_POSTGRES_CONN_TIMEOUT", 5*time.Second),
		},
		Redis: Redis{
			URL:          os.Getenv("VERIDOC_REDIS_URL"),
			PoolSize:     envInt("VERIDOC_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VERIDOC_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("VERIDOC_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VERIDOC_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VERIDOC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("VERIDOC_KAFKA_BROKERS")),
			Topic:   envString("VERIDOC_KAFKA_TOPIC", "veridoc.events"),
			Group:   envString("VERIDOC_KAFKA_GROUP", "veridoc"),
		},
		Pipeline: Pipeline{
			StageTimeout: envDuration("VERIDOC_STAGE_TIMEOUT", 2*time.Second),
		},
		Review: Review{
			EscalationInterval: envDuration("VERIDOC_ESCALATION_INTERVAL", time.Hour),
		},
		Offline: Offline{
			SyncCapacityPerMinute: envInt("VERIDOC_SYNC_CAPACITY_PER_MINUTE", 0),
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
