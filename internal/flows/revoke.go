package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

type RevokeSessionStore interface {
	AccessToken(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
	ListByUser(ctx context.Context, userID string) ([]*session.Session, error)
}

type RevokeRateLimiter interface {
	Reset(ctx context.Context, sessionID string) error
}

// RevokeDeps captures revocation dependencies.
type RevokeDeps struct {
	DecodeUnsafe func(string) (*jwt.TokenClaims, error)
	Now          func() time.Time
	// MaxTTL caps a blacklist entry. exp is read without a signature check,
	// so no entry may outlive the longest genuine token lifetime.
	MaxTTL              time.Duration
	Revocations         RevocationWriter
	SessionStore        RevokeSessionStore
	RateLimiter         RevokeRateLimiter
	BlacklistLastAccess bool
	Warn                func(string, ...any)
	RedisNil            error
}

// RevokeTokenResult reports what RunRevokeToken did.
type RevokeTokenResult struct {
	Err       error
	DecodeErr bool
	SessionID string
	UserID    string
	TTL       time.Duration
}

// RunRevokeToken blacklists token for its remaining lifetime. Already
// expired tokens need no entry and succeed without touching the store.
func RunRevokeToken(ctx context.Context, token string, deps RevokeDeps) RevokeTokenResult {
	claims, err := deps.DecodeUnsafe(token)
	if err != nil {
		return RevokeTokenResult{Err: err, DecodeErr: true}
	}

	res := RevokeTokenResult{SessionID: claims.SessionID, UserID: claims.UserID}
	if claims.ExpiresAt == nil {
		res.Err = errors.New("token carries no expiry")
		res.DecodeErr = true
		return res
	}

	ttl := claims.ExpiresAt.Time.Sub(deps.Now())
	if ttl <= 0 {
		return res
	}
	if deps.MaxTTL > 0 && ttl > deps.MaxTTL {
		ttl = deps.MaxTTL
	}
	res.TTL = ttl
	res.Err = deps.Revocations.Add(ctx, token, ttl)
	return res
}

// RunRevokeSession removes a session with its refresh record and index
// entry. With BlacklistLastAccess the last access token issued for the
// session is blacklisted first so it stops verifying immediately.
func RunRevokeSession(ctx context.Context, sessionID string, deps RevokeDeps) error {
	if sessionID == "" {
		return nil
	}

	if deps.BlacklistLastAccess {
		if err := blacklistLastAccess(ctx, sessionID, deps); err != nil {
			return err
		}
	}

	if err := deps.SessionStore.Delete(ctx, sessionID); err != nil {
		return err
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.Reset(ctx, sessionID); err != nil && deps.Warn != nil {
			deps.Warn("refresh throttle reset failed", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

func blacklistLastAccess(ctx context.Context, sessionID string, deps RevokeDeps) error {
	access, err := deps.SessionStore.AccessToken(ctx, sessionID)
	if err != nil {
		if deps.RedisNil != nil && errors.Is(err, deps.RedisNil) {
			return nil
		}
		return err
	}

	res := RunRevokeToken(ctx, access, deps)
	if res.DecodeErr {
		if deps.Warn != nil {
			deps.Warn("stored access token undecodable", "session_id", sessionID, "error", res.Err)
		}
		return nil
	}
	return res.Err
}

// RevokeAllResult reports how many sessions were revoked. Err joins every
// per-session failure; sessions that failed stay bounded by their own TTL.
type RevokeAllResult struct {
	Revoked int
	Err     error
}

// RunRevokeAll revokes every live session of the user, one at a time.
func RunRevokeAll(ctx context.Context, userID string, deps RevokeDeps) RevokeAllResult {
	sessions, err := deps.SessionStore.ListByUser(ctx, userID)
	if err != nil {
		return RevokeAllResult{Err: err}
	}

	var (
		res  RevokeAllResult
		errs []error
	)
	for _, sess := range sessions {
		if err := RunRevokeSession(ctx, sess.SessionID, deps); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Revoked++
	}
	res.Err = errors.Join(errs...)
	return res
}
