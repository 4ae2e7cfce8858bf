package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every variable read by [LoadConfigFromEnv].
const EnvPrefix = "GOSESSION_"

// Config is the service configuration. Start from [DefaultConfig] or
// [LoadConfigFromEnv]; a Config is copied by [Builder.WithConfig] and
// immutable afterwards.
type Config struct {
	JWT        JWTConfig        `envPrefix:"JWT_"`
	Session    SessionConfig    `envPrefix:"SESSION_"`
	Refresh    RefreshConfig    `envPrefix:"REFRESH_"`
	Revocation RevocationConfig `envPrefix:"REVOCATION_"`
	Cleanup    CleanupConfig    `envPrefix:"CLEANUP_"`
	Audit      AuditConfig      `envPrefix:"AUDIT_"`
	Metrics    MetricsConfig    `envPrefix:"METRICS_"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token codec. For hs256 PrivateKey is the shared
// secret; for ed25519 it is a PEM or raw private key and PublicKey may be
// left empty to derive it.
type JWTConfig struct {
	AccessTTL     time.Duration `env:"ACCESS_TTL"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL"`
	SigningMethod string        `env:"SIGNING_METHOD"` // "hs256" (default) or "ed25519"
	PrivateKey    string        `env:"PRIVATE_KEY,unset"`
	PublicKey     string        `env:"PUBLIC_KEY"`
	KeyID         string        `env:"KEY_ID"`
	Issuer        string        `env:"ISSUER"`
	Audience      string        `env:"AUDIENCE"`
	Leeway        time.Duration `env:"LEEWAY"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session storage.
type SessionConfig struct {
	// KeyPrefix is prepended to every Redis key. Empty keeps the bare
	// token:/refresh:/blacklist: layout.
	KeyPrefix string `env:"KEY_PREFIX"`
	// TouchOnVerify rewrites LastUsedAt and resets the session TTL after
	// every successful verification.
	TouchOnVerify bool `env:"TOUCH_ON_VERIFY"`
	// TouchTimeout bounds each background touch.
	TouchTimeout time.Duration `env:"TOUCH_TIMEOUT"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh behaviour.
type RefreshConfig struct {
	// RotateOnUse issues a new refresh token on every refresh and
	// invalidates the presented one. Presenting a superseded refresh token
	// then revokes the session.
	RotateOnUse bool `env:"ROTATE_ON_USE"`
	// MaxAttempts per Window per session; zero disables the throttle.
	MaxAttempts int           `env:"MAX_ATTEMPTS"`
	Window      time.Duration `env:"WINDOW"`
}

// RevocationConfig controls revocation side effects.
type RevocationConfig struct {
	// BlacklistAccessOnSessionRevoke blacklists the session's last issued
	// access token on RevokeSession so it stops verifying immediately.
	BlacklistAccessOnSessionRevoke bool `env:"BLACKLIST_ACCESS_ON_SESSION_REVOKE"`
}

// CleanupConfig controls the background sweeper.
type CleanupConfig struct {
	Interval  time.Duration `env:"INTERVAL"`
	Timeout   time.Duration `env:"TIMEOUT"`
	BatchSize int64         `env:"BATCH_SIZE"`
}

// AuditConfig controls audit event dispatching.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. It has no signing key;
// callers must set JWT.PrivateKey.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			TouchOnVerify: true,
			TouchTimeout:  2 * time.Second,
		},
		Refresh: RefreshConfig{
			RotateOnUse: false,
			MaxAttempts: 0,
			Window:      time.Minute,
		},
		Cleanup: CleanupConfig{
			Interval:  2 * time.Hour,
			Timeout:   5 * time.Minute,
			BatchSize: 500,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// LoadConfigFromEnv overlays GOSESSION_* environment variables onto the
// defaults and validates the result. Unset variables keep their defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. Key material is parsed later by the
// codec, so a structurally valid Config may still fail [Builder.Build].
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL > c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must not exceed RefreshTTL")
	}

	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	// Refresh touches lastUsedAt regardless of TouchOnVerify.
	if c.Session.TouchTimeout <= 0 {
		return errors.New("Session TouchTimeout must be > 0")
	}
	if strings.ContainsAny(c.Session.KeyPrefix, " \t\r\n") {
		return errors.New("Session KeyPrefix must not contain whitespace")
	}

	// Refresh
	if c.Refresh.MaxAttempts < 0 {
		return errors.New("Refresh MaxAttempts must be >= 0")
	}
	if c.Refresh.MaxAttempts > 0 && c.Refresh.Window <= 0 {
		return errors.New("Refresh Window must be > 0 when MaxAttempts is set")
	}

	// Cleanup
	if c.Cleanup.Interval < 0 {
		return errors.New("Cleanup Interval must be >= 0")
	}
	if c.Cleanup.Interval > 0 && c.Cleanup.Timeout <= 0 {
		return errors.New("Cleanup Timeout must be > 0 when Interval is set")
	}
	if c.Cleanup.BatchSize <= 0 {
		return errors.New("Cleanup BatchSize must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
