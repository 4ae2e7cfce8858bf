package goSession

import (
	"context"
	"errors"

	internalflows "github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

// GetUserSessions lists the user's live sessions. Index entries whose
// session has expired are pruned as a side effect.
func (s *Service) GetUserSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if s == nil {
		return nil, ErrEngineNotReady
	}

	sessions, err := internalflows.RunListSessions(ctx, userID, s.flows.Introspection)
	if err != nil {
		if errors.Is(err, ErrEngineNotReady) {
			return nil, err
		}
		return nil, storeError(err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionInfo(sess))
	}
	return out, nil
}

// GetSession returns one session by id, or [ErrSessionNotFound].
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if s == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := internalflows.RunGetSession(ctx, sessionID, s.flows.Introspection)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrEngineNotReady):
		return nil, err
	case errors.Is(err, session.ErrSessionCorrupt):
		s.logger.Warn("unreadable session row", "session_id", sessionID, "error", err)
		return nil, ErrSessionNotFound
	default:
		return nil, storeError(err)
	}

	info := toSessionInfo(sess)
	return &info, nil
}

// ActiveSessionEstimate counts session rows with a SCAN. The figure is
// approximate while sessions are being created or expire.
func (s *Service) ActiveSessionEstimate(ctx context.Context) (int, error) {
	if s == nil {
		return 0, ErrEngineNotReady
	}
	n, err := internalflows.RunActiveSessionEstimate(ctx, s.flows.Introspection)
	if err != nil && !errors.Is(err, ErrEngineNotReady) {
		return n, storeError(err)
	}
	return n, err
}

func toSessionInfo(sess *session.Session) SessionInfo {
	return SessionInfo{
		SessionID:  sess.SessionID,
		UserID:     sess.UserID,
		Email:      sess.Email,
		CreatedAt:  sess.CreatedAt,
		LastUsedAt: sess.LastUsedAt,
	}
}
