package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// MemoryDatabaseURL selects the in-process store instead of Postgres.
const MemoryDatabaseURL = "memory://"

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL    string `env:"DATABASE_URL,required" validate:"required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	JWTSecret   string `env:"JWT_SECRET,required"   validate:"required,min=32"`
	AdminSecret string `env:"ADMIN_SECRET,required" validate:"required"`
	BcryptCost  int    `env:"BCRYPT_COST" envDefault:"10" validate:"min=4,max=31"`

	AuthTimeoutMS    int `env:"AUTH_TIMEOUT_MS" envDefault:"2000" validate:"min=1"`
	RequestTimeoutMS int `env:"REQUEST_TIMEOUT_MS" envDefault:"5000" validate:"min=1"`

	RedisURL        string `env:"REDIS_URL"`
	UserCacheTTLSec int    `env:"USER_CACHE_TTL_SEC" envDefault:"300" validate:"min=1"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	// ResendFromName is the display name next to RESEND_FROM.
	ResendFromName string `env:"RESEND_FROM_NAME" envDefault:"Storefront"`

	NotifyPollIntervalSec int `env:"NOTIFY_POLL_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=300"`
	NotifyBatchSize       int `env:"NOTIFY_BATCH_SIZE" envDefault:"20" validate:"min=1,max=500"`
	// A claim older than this is presumed dead and handed back.
	NotifyClaimTimeoutSec int `env:"NOTIFY_CLAIM_TIMEOUT_SEC" envDefault:"300" validate:"min=30,max=3600"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) InMemory() bool {
	return c.DatabaseURL == MemoryDatabaseURL
}

func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutMS) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) UserCacheTTL() time.Duration {
	return time.Duration(c.UserCacheTTLSec) * time.Second
}

func (c *Config) NotifyClaimTimeout() time.Duration {
	return time.Duration(c.NotifyClaimTimeoutSec) * time.Second
}
