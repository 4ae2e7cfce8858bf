package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/audit"
	internalflows "github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/revocation"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Service issues, verifies, refreshes and revokes session tokens.
//
// A Service is built once by [Builder.Build] and is safe for concurrent use.
// Call [Service.Close] on shutdown to flush pending touches and audit events.
type Service struct {
	config      Config
	clock       func() time.Time
	logger      *slog.Logger
	codec       *jwt.Manager
	sessions    *session.Store
	revocations *revocation.List
	limiter     *rate.Limiter
	audit       *audit.Dispatcher
	metrics     *Metrics
	flows       internalflows.Deps

	// touchMu guards closed against touches started during Close.
	touchMu sync.RWMutex
	closed  bool
	touches sync.WaitGroup
}

func (s *Service) now() time.Time {
	return s.clock()
}

/*
====================================
ISSUANCE
====================================
*/

// GenerateTokenPair opens a new session for the user and returns an access
// and refresh token bound to it. Both tokens carry the same session id.
//
// Any codec or store failure is returned wrapped in
// [ErrSessionCreationFailed]; no partial session is left behind.
func (s *Service) GenerateTokenPair(ctx context.Context, userID, email string) (*TokenPair, error) {
	if s == nil || s.codec == nil {
		return nil, ErrEngineNotReady
	}

	pair, err := s.generateTokenPair(ctx, userID, email)
	if err != nil {
		s.metrics.Inc(MetricIssueFailure)
		s.logger.Error("token pair issuance failed", "user_id", userID, "error", err)
		s.emitAudit(ctx, AuditSessionCreateFailed, false, userID, "", err, nil)
		return nil, err
	}

	s.metrics.Inc(MetricTokenPairIssued)
	s.logger.Debug("session created", "user_id", userID, "session_id", pair.SessionID)
	s.emitAudit(ctx, AuditSessionCreated, true, userID, pair.SessionID, nil, nil)
	return pair, nil
}

func (s *Service) generateTokenPair(ctx context.Context, userID, email string) (*TokenPair, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrSessionCreationFailed)
	}

	sessionID, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	access, accessExp, err := s.codec.Sign(userID, email, sessionID, TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	refresh, refreshExp, err := s.codec.Sign(userID, email, sessionID, TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	now := s.now()
	sess := &session.Session{
		SessionID:  sessionID,
		UserID:     userID,
		Email:      email,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := s.sessions.Put(ctx, sess, refresh, s.codec.TTL(TokenRefresh)); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrSessionCreationFailed, ErrStoreUnavailable, err)
	}

	if s.config.Revocation.BlacklistAccessOnSessionRevoke {
		if err := s.sessions.PutAccess(ctx, sessionID, access, s.codec.TTL(TokenAccess)); err != nil {
			if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
				s.logger.Warn("rollback of partial session failed", "session_id", sessionID, "error", delErr)
			}
			return nil, fmt.Errorf("%w: %w: %v", ErrSessionCreationFailed, ErrStoreUnavailable, err)
		}
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
	}, nil
}

/*
====================================
VERIFICATION
====================================
*/

// VerifyToken validates a token of either type and returns its payload.
// It reports false for revoked, expired, malformed or tampered tokens, for
// refresh tokens that are no longer the session's current record, and when
// the store cannot answer. Failures are never distinguished to the caller.
//
// With Session.TouchOnVerify a successful verification refreshes the
// session's LastUsedAt in the background.
func (s *Service) VerifyToken(ctx context.Context, token string) (*TokenPayload, bool) {
	if s == nil || s.codec == nil {
		return nil, false
	}

	var start time.Time
	if s.metrics.LatencyEnabled() {
		start = time.Now()
	}
	res := internalflows.RunVerify(ctx, token, s.flows.Verify)
	if s.metrics.LatencyEnabled() {
		s.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	switch res.Outcome {
	case internalflows.VerifyValid:
		s.metrics.Inc(MetricVerifySuccess)
	case internalflows.VerifyRevoked:
		s.metrics.Inc(MetricVerifyRevoked)
	case internalflows.VerifyExpired:
		s.metrics.Inc(MetricVerifyExpired)
	case internalflows.VerifyMalformed:
		s.metrics.Inc(MetricVerifyMalformed)
	case internalflows.VerifySessionMismatch:
		s.metrics.Inc(MetricVerifySessionMismatch)
	case internalflows.VerifyStoreError:
		s.metrics.Inc(MetricVerifyStoreError)
		s.logger.Warn("token verification failed closed", "error", res.Err)
		return nil, false
	}

	if res.Outcome != internalflows.VerifyValid {
		s.logger.Debug("token rejected", "outcome", res.Outcome.String(), "error", res.Err)
		return nil, false
	}

	if s.config.Session.TouchOnVerify {
		s.touchAsync(ctx, res.Claims.SessionID)
	}
	return payloadFromClaims(res.Claims), true
}

// touchAsync updates LastUsedAt and resets the session TTL without holding
// up the caller. A session deleted meanwhile is not recreated.
func (s *Service) touchAsync(ctx context.Context, sessionID string) {
	s.touchMu.RLock()
	defer s.touchMu.RUnlock()
	if s.closed {
		return
	}

	s.touches.Add(1)
	go func() {
		defer s.touches.Done()

		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.Session.TouchTimeout)
		defer cancel()

		err := s.sessions.Touch(tctx, sessionID, s.now(), s.codec.TTL(TokenRefresh))
		if err != nil && !errors.Is(err, redis.Nil) {
			s.metrics.Inc(MetricTouchFailure)
			s.logger.Warn("session touch failed", "session_id", sessionID, "error", err)
		}
	}()
}

/*
====================================
REFRESH
====================================
*/

// RefreshAccessToken exchanges a valid refresh token for a new access token.
// The refresh token must still be the session's current record.
//
// Every credential failure returns [ErrUnauthenticated] with no detail. A
// throttled session returns [ErrRefreshRateLimited]. With
// Refresh.RotateOnUse the grant also carries a replacement refresh token
// and the presented one stops working; presenting it again revokes the
// session.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*AccessGrant, error) {
	if s == nil || s.codec == nil {
		return nil, ErrEngineNotReady
	}

	res := internalflows.RunRefresh(ctx, refreshToken, s.flows.Refresh)
	if res.Failure != internalflows.RefreshFailureNone {
		err := s.refreshError(res)
		s.metrics.Inc(MetricRefreshFailure)
		s.logger.Debug("refresh rejected",
			"reason", res.Failure.String(),
			"session_id", res.SessionID,
			"error", res.Err,
		)
		if res.Failure == internalflows.RefreshFailureReuse {
			s.metrics.Inc(MetricRefreshReuseDetected)
			s.logger.Warn("refresh token reuse detected; session revoked",
				"session_id", res.SessionID,
				"user_id", res.UserID,
			)
			s.emitAudit(ctx, AuditRefreshReuse, false, res.UserID, res.SessionID, ErrUnauthenticated, nil)
		} else {
			s.emitAudit(ctx, AuditRefreshRejected, false, res.UserID, res.SessionID, err,
				map[string]string{"reason": res.Failure.String()})
		}
		return nil, err
	}

	s.metrics.Inc(MetricRefreshSuccess)
	s.emitAudit(ctx, AuditRefreshSuccess, true, res.UserID, res.SessionID, nil, nil)
	s.touchAsync(ctx, res.SessionID)

	return &AccessGrant{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}, nil
}

func (s *Service) refreshError(res internalflows.RefreshResult) error {
	switch {
	case res.Failure.Credential():
		return ErrUnauthenticated
	case res.Failure == internalflows.RefreshFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			s.metrics.Inc(MetricRefreshRateLimited)
			return ErrRefreshRateLimited
		}
		return storeError(res.Err)
	case res.Failure == internalflows.RefreshFailureIssue:
		return fmt.Errorf("issue access token: %w", res.Err)
	default:
		return storeError(res.Err)
	}
}

/*
====================================
LIFECYCLE
====================================
*/

// Close stops background work: it waits for in-flight session touches and
// drains the audit dispatcher. It is safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}

	s.touchMu.Lock()
	s.closed = true
	s.touchMu.Unlock()

	s.touches.Wait()
	if s.audit != nil {
		s.audit.Close()
	}
}

// Health pings the store and reports its round-trip latency.
func (s *Service) Health(ctx context.Context) HealthStatus {
	if s == nil {
		return HealthStatus{}
	}
	ok, latency := internalflows.RunHealth(ctx, s.flows.Introspection)
	return HealthStatus{RedisAvailable: ok, RedisLatency: latency}
}

// MetricsSnapshot returns a point-in-time copy of the service counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config {
	return s.config
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
