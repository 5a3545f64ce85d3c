package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string
	SealKey       string

	// CompletionWebhookURL, when set, receives a POST for every finished
	// or failed handshake so the chat layer can notify the user.
	CompletionWebhookURL string

	// ConfirmTimeout bounds the wait for the out-of-band confirmation.
	ConfirmTimeout time.Duration
	// AuthGrace is the pause after confirmation before the authorization
	// check, absorbing propagation lag in the remote service.
	AuthGrace time.Duration
	// StartCooldown is the minimum spacing between handshakes per user.
	// Zero disables the limiter.
	StartCooldown time.Duration

	// DevConfirmAfter makes the in-process gateway auto-confirm challenges
	// after this delay. Local runs only; zero means challenges stay pending
	// until they time out.
	DevConfirmAfter time.Duration
}

// RedisConfig captures connection tuning for the optional Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                 getenv("QRLINK_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("QRLINK_DATABASE_URL"),
		RedisURL:             os.Getenv("QRLINK_REDIS_URL"),
		JWTSigningKey:        getenv("QRLINK_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SealKey:              os.Getenv("QRLINK_SEAL_KEY"),
		CompletionWebhookURL: os.Getenv("QRLINK_COMPLETION_WEBHOOK"),
		ConfirmTimeout:       getduration("QRLINK_CONFIRM_TIMEOUT", 120*time.Second),
		AuthGrace:            getduration("QRLINK_AUTH_GRACE", 3*time.Second),
		StartCooldown:        getduration("QRLINK_START_COOLDOWN", 0),
		DevConfirmAfter:      getduration("QRLINK_DEV_CONFIRM_AFTER", 0),
	}
	return cfg
}

// Redis derives the Redis client configuration with pool defaults.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
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
