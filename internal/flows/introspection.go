package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/session"
)

type IntrospectionSessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*session.Session, error)
	EstimateActiveSessions(ctx context.Context) (int, error)
	Ping(ctx context.Context) (time.Duration, error)
}

type IntrospectionDeps struct {
	SessionStore       IntrospectionSessionStore
	ValidSessionID     func(string) bool
	EngineNotReadyErr  error
	SessionNotFoundErr error
	RedisNil           error
}

// RunListSessions returns the user's live sessions. An empty user id has no
// sessions.
func RunListSessions(ctx context.Context, userID string, deps IntrospectionDeps) ([]*session.Session, error) {
	if deps.SessionStore == nil {
		return nil, deps.EngineNotReadyErr
	}
	if userID == "" {
		return []*session.Session{}, nil
	}
	return deps.SessionStore.ListByUser(ctx, userID)
}

func RunGetSession(ctx context.Context, sessionID string, deps IntrospectionDeps) (*session.Session, error) {
	if deps.SessionStore == nil {
		return nil, deps.EngineNotReadyErr
	}
	if sessionID == "" || (deps.ValidSessionID != nil && !deps.ValidSessionID(sessionID)) {
		return nil, deps.SessionNotFoundErr
	}

	sess, err := deps.SessionStore.Get(ctx, sessionID)
	if err != nil {
		if deps.RedisNil != nil && errors.Is(err, deps.RedisNil) {
			return nil, deps.SessionNotFoundErr
		}
		return nil, err
	}
	return sess, nil
}

func RunActiveSessionEstimate(ctx context.Context, deps IntrospectionDeps) (int, error) {
	if deps.SessionStore == nil {
		return 0, deps.EngineNotReadyErr
	}
	return deps.SessionStore.EstimateActiveSessions(ctx)
}

func RunHealth(ctx context.Context, deps IntrospectionDeps) (bool, time.Duration) {
	if deps.SessionStore == nil {
		return false, 0
	}
	latency, err := deps.SessionStore.Ping(ctx)
	return err == nil, latency
}
