package goSession

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal"
	internalflows "github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/revocation"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Service]. It is meant to be configured once during
// start-up; Build may only be called once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the backing store. Standalone and failover clients work;
// cluster clients do not, since session writes are multi-key transactions.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Without one the service logs
// nothing.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source used for issuing and verifying tokens
// and for session timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the codec, stores and flows.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    []byte(cfg.JWT.PrivateKey),
		PublicKey:     []byte(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config:      cfg,
		clock:       now,
		logger:      logger,
		codec:       codec,
		sessions:    session.NewStore(b.redis, cfg.Session.KeyPrefix),
		revocations: revocation.NewList(b.redis, cfg.Session.KeyPrefix),
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink, now),
		metrics:     NewMetrics(cfg.Metrics),
	}
	if cfg.Refresh.MaxAttempts > 0 {
		svc.limiter = rate.New(b.redis, cfg.Session.KeyPrefix, rate.Config{
			MaxAttempts: cfg.Refresh.MaxAttempts,
			Window:      cfg.Refresh.Window,
		})
	}
	svc.flows = svc.buildFlowDeps()

	b.built = true

	return svc, nil
}

func (s *Service) buildFlowDeps() internalflows.Deps {
	warn := func(msg string, args ...any) {
		s.logger.Warn(msg, args...)
	}

	deps := internalflows.Deps{
		Verify: internalflows.VerifyDeps{
			Revocations:  s.revocations,
			Parse:        s.codec.Verify,
			SessionStore: s.sessions,
			ExpiredErr:   jwt.ErrTokenExpired,
			RedisNil:     redis.Nil,
		},
		Refresh: internalflows.RefreshDeps{
			Revocations:     s.revocations,
			Parse:           s.codec.Verify,
			Sign:            s.codec.Sign,
			AccessTTL:       s.codec.TTL(jwt.TokenAccess),
			RefreshTTL:      s.codec.TTL(jwt.TokenRefresh),
			RotateOnUse:     s.config.Refresh.RotateOnUse,
			RecordAccess:    s.config.Revocation.BlacklistAccessOnSessionRevoke,
			SessionStore:    s.sessions,
			Warn:            warn,
			ExpiredErr:      jwt.ErrTokenExpired,
			RedisNil:        redis.Nil,
			RefreshMismatch: session.ErrRefreshMismatch,
		},
		Revoke: internalflows.RevokeDeps{
			DecodeUnsafe:        s.codec.DecodeUnsafe,
			Now:                 s.clock,
			MaxTTL:              s.codec.TTL(jwt.TokenRefresh),
			Revocations:         s.revocations,
			SessionStore:        s.sessions,
			BlacklistLastAccess: s.config.Revocation.BlacklistAccessOnSessionRevoke,
			Warn:                warn,
			RedisNil:            redis.Nil,
		},
		Introspection: internalflows.IntrospectionDeps{
			SessionStore:       s.sessions,
			ValidSessionID:     internal.ValidSessionID,
			EngineNotReadyErr:  ErrEngineNotReady,
			SessionNotFoundErr: ErrSessionNotFound,
			RedisNil:           redis.Nil,
		},
		Cleanup: internalflows.CleanupDeps{
			SessionStore: s.sessions,
			BatchSize:    s.config.Cleanup.BatchSize,
		},
	}

	// A nil *rate.Limiter stored in an interface would not compare equal to
	// nil inside the flows.
	if s.limiter != nil {
		deps.Refresh.RateLimiter = s.limiter
		deps.Revoke.RateLimiter = s.limiter
	}
	return deps
}
