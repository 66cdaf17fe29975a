package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL" validate:"required"`

	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// AuthSecret gates mutating control-plane routes with an HS256 bearer
	// check when set. Left empty, the auth middleware is a no-op — meant
	// for local development only (see SPEC_FULL.md §6.1).
	AuthSecret string `env:"AUTH_SECRET"`

	WorkerPollInterval      int `env:"WORKER_POLL_INTERVAL" envDefault:"5" validate:"min=1,max=300"`
	WorkerMaxTasks          int `env:"WORKER_MAX_TASKS" envDefault:"10" validate:"min=1,max=1000"`
	WorkerHeartbeatInterval int `env:"WORKER_HEARTBEAT_INTERVAL" envDefault:"30" validate:"min=1,max=300"`

	ReaperInterval         int `env:"REAPER_INTERVAL" envDefault:"15" validate:"min=1,max=300"`
	ReaperHeartbeatTimeout int `env:"REAPER_HEARTBEAT_TIMEOUT" envDefault:"90" validate:"min=1,max=3600"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.assembleDatabaseURL()
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// assembleDatabaseURL builds a Postgres DSN from the discrete POSTGRES_*
// vars when DATABASE_URL is not set directly (SPEC_FULL.md §6.2).
func (c *Config) assembleDatabaseURL() string {
	if c.PostgresHost == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
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
