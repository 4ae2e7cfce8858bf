package goSession

import (
	"context"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/goSession/internal/flows"
)

// RevokeToken blacklists a single token for the rest of its lifetime. Only
// the exp claim is read, so tokens signed by rotated-out keys can still be
// revoked. Revoking twice is harmless and keeps the original expiry.
//
// An undecodable token returns [ErrSignatureInvalid]; an already expired
// token succeeds without writing anything.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if s == nil || s.codec == nil {
		return ErrEngineNotReady
	}

	res := internalflows.RunRevokeToken(ctx, token, s.flows.Revoke)
	if res.DecodeErr {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, res.Err)
	}
	if res.Err != nil {
		s.logger.Warn("token revoke failed", "session_id", res.SessionID, "error", res.Err)
		return storeError(res.Err)
	}
	if res.TTL <= 0 {
		return nil
	}

	s.metrics.Inc(MetricTokenRevoked)
	s.logger.Debug("token revoked", "session_id", res.SessionID, "ttl", res.TTL)
	s.emitAudit(ctx, AuditTokenRevoked, true, res.UserID, res.SessionID, nil, nil)
	return nil
}

// RevokeSession deletes the session, its refresh record and its index
// entry. The session's refresh token stops verifying at once. Outstanding
// access tokens keep working until they expire unless
// Revocation.BlacklistAccessOnSessionRevoke is set. Revoking an unknown
// session succeeds.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	if s == nil || s.sessions == nil {
		return ErrEngineNotReady
	}

	if err := internalflows.RunRevokeSession(ctx, sessionID, s.flows.Revoke); err != nil {
		s.logger.Warn("session revoke failed", "session_id", sessionID, "error", err)
		return storeError(err)
	}

	s.metrics.Inc(MetricSessionRevoked)
	s.logger.Debug("session revoked", "session_id", sessionID)
	s.emitAudit(ctx, AuditSessionRevoked, true, "", sessionID, nil, nil)
	return nil
}

// RevokeAllUserTokens revokes every live session of the user and returns
// how many were revoked. Per-session failures do not stop the sweep; they
// are joined into the returned error.
func (s *Service) RevokeAllUserTokens(ctx context.Context, userID string) (int, error) {
	if s == nil || s.sessions == nil {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, nil
	}

	res := internalflows.RunRevokeAll(ctx, userID, s.flows.Revoke)
	s.metrics.Inc(MetricRevokeAll)
	s.metrics.Add(MetricSessionRevoked, uint64(res.Revoked))

	if res.Err != nil {
		s.logger.Warn("revoke all sessions incomplete", "user_id", userID, "revoked", res.Revoked, "error", res.Err)
		s.emitAudit(ctx, AuditUserSessionsRevoked, false, userID, "", res.Err, countMetadata("revoked", res.Revoked))
		return res.Revoked, storeError(res.Err)
	}

	s.logger.Info("all user sessions revoked", "user_id", userID, "revoked", res.Revoked)
	s.emitAudit(ctx, AuditUserSessionsRevoked, true, userID, "", nil, countMetadata("revoked", res.Revoked))
	return res.Revoked, nil
}

/*
====================================
CLEANUP
====================================
*/

// CleanupExpiredTokens removes session state that was written without a
// TTL. Rows that carry a TTL are left to expire in the store, so a healthy
// deployment usually reports nothing deleted.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (CleanupResult, error) {
	if s == nil || s.sessions == nil {
		return CleanupResult{}, ErrEngineNotReady
	}

	start := time.Now()
	res := internalflows.RunCleanup(ctx, s.flows.Cleanup)
	out := CleanupResult{
		DeletedCount:    res.DeletedCount,
		SessionsDeleted: res.SessionsDeleted,
		RecordsDeleted:  res.RecordsDeleted,
		IndexPruned:     res.IndexPruned,
		Duration:        time.Since(start),
	}

	s.metrics.Inc(MetricCleanupRun)
	s.metrics.Add(MetricCleanupDeleted, uint64(out.DeletedCount))

	if res.Err != nil {
		s.logger.Warn("cleanup aborted", "deleted", out.DeletedCount, "error", res.Err)
		s.emitAudit(ctx, AuditCleanup, false, "", "", res.Err, countMetadata("deleted", out.DeletedCount))
		return out, storeError(res.Err)
	}

	s.logger.Info("cleanup finished",
		"deleted", out.DeletedCount,
		"sessions", out.SessionsDeleted,
		"records", out.RecordsDeleted,
		"index_pruned", out.IndexPruned,
		"duration", out.Duration,
	)
	s.emitAudit(ctx, AuditCleanup, true, "", "", nil, countMetadata("deleted", out.DeletedCount))
	return out, nil
}
