package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// daemonConfig holds the process settings that are not part of the service
// configuration. Service settings are read separately with the GOSESSION_
// prefix.
type daemonConfig struct {
	Addr            string        `env:"SESSIOND_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SESSIOND_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// AdminToken enables the issuance and bulk revocation endpoints. Empty
	// leaves them unregistered.
	AdminToken string `env:"SESSIOND_ADMIN_TOKEN,unset"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

func loadDaemonConfig() (daemonConfig, error) {
	var cfg daemonConfig
	if err := env.Parse(&cfg); err != nil {
		return daemonConfig{}, fmt.Errorf("parse daemon env: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		return daemonConfig{}, fmt.Errorf("SESSIOND_SHUTDOWN_TIMEOUT must be > 0")
	}
	return cfg, nil
}

func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(h)
	slog.SetDefault(log)
	return log
}
