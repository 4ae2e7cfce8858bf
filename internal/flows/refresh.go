package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureRevoked
	RefreshFailureExpired
	RefreshFailureMalformed
	RefreshFailureTypeMismatch
	RefreshFailureRateLimited
	RefreshFailureSessionNotFound
	RefreshFailureMismatch
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureIssue
	RefreshFailureRotate
	RefreshFailureRecordAccess
)

// Credential reports whether the failure is about the presented token
// rather than a fault while issuing.
func (k RefreshFailureKind) Credential() bool {
	switch k {
	case RefreshFailureRevoked,
		RefreshFailureExpired,
		RefreshFailureMalformed,
		RefreshFailureTypeMismatch,
		RefreshFailureSessionNotFound,
		RefreshFailureMismatch,
		RefreshFailureReuse,
		RefreshFailureStore:
		return true
	default:
		return false
	}
}

func (k RefreshFailureKind) String() string {
	switch k {
	case RefreshFailureNone:
		return "none"
	case RefreshFailureRevoked:
		return "revoked"
	case RefreshFailureExpired:
		return "expired"
	case RefreshFailureMalformed:
		return "malformed"
	case RefreshFailureTypeMismatch:
		return "type_mismatch"
	case RefreshFailureRateLimited:
		return "rate_limited"
	case RefreshFailureSessionNotFound:
		return "session_not_found"
	case RefreshFailureMismatch:
		return "mismatch"
	case RefreshFailureReuse:
		return "reuse"
	case RefreshFailureStore:
		return "store_error"
	case RefreshFailureIssue:
		return "issue_access"
	case RefreshFailureRotate:
		return "rotate"
	case RefreshFailureRecordAccess:
		return "record_access"
	default:
		return "unknown"
	}
}

// RefreshResult carries either the issued credentials or failure metadata.
type RefreshResult struct {
	Failure          RefreshFailureKind
	Err              error
	SessionID        string
	UserID           string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, sessionID string) error
}

type RefreshSessionStore interface {
	RefreshToken(ctx context.Context, sessionID string) (string, error)
	RotateRefresh(ctx context.Context, sessionID, presented, next string, fallbackTTL time.Duration) error
	PutAccess(ctx context.Context, sessionID, accessToken string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Revocations     RevocationChecker
	Parse           func(string) (*jwt.TokenClaims, error)
	Sign            func(userID, email, sessionID string, tokenType jwt.TokenType) (string, time.Time, error)
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	RotateOnUse     bool
	RecordAccess    bool
	RateLimiter     RefreshRateLimiter
	SessionStore    RefreshSessionStore
	Warn            func(string, ...any)
	ExpiredErr      error
	RedisNil        error
	RefreshMismatch error
}

// RunRefresh authenticates a refresh token against the session's current
// refresh record and issues a new access token. With RotateOnUse the refresh
// record is swapped by compare-and-set, and presenting a superseded refresh
// token revokes the whole session.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureMalformed, Err: errors.New("empty token")}
	}

	revoked, err := deps.Revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err}
	}
	if revoked {
		return RefreshResult{Failure: RefreshFailureRevoked}
	}

	claims, err := deps.Parse(refreshToken)
	if err != nil {
		if deps.ExpiredErr != nil && errors.Is(err, deps.ExpiredErr) {
			return RefreshResult{Failure: RefreshFailureExpired, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureMalformed, Err: err}
	}

	base := RefreshResult{SessionID: claims.SessionID, UserID: claims.UserID}
	fail := func(kind RefreshFailureKind, err error) RefreshResult {
		r := base
		r.Failure = kind
		r.Err = err
		return r
	}

	if claims.TokenType != jwt.TokenRefresh {
		return fail(RefreshFailureTypeMismatch, nil)
	}

	if !deps.RotateOnUse {
		stored, err := deps.SessionStore.RefreshToken(ctx, claims.SessionID)
		if err != nil {
			if deps.RedisNil != nil && errors.Is(err, deps.RedisNil) {
				return fail(RefreshFailureSessionNotFound, err)
			}
			return fail(RefreshFailureStore, err)
		}
		if stored != refreshToken {
			return fail(RefreshFailureMismatch, nil)
		}
	}

	// Only tokens that still match the session record spend throttle budget.
	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, claims.SessionID); err != nil {
			return fail(RefreshFailureRateLimited, err)
		}
	}

	access, accessExp, err := deps.Sign(claims.UserID, claims.Email, claims.SessionID, jwt.TokenAccess)
	if err != nil {
		return fail(RefreshFailureIssue, err)
	}

	out := base
	out.AccessToken = access
	out.AccessExpiresAt = accessExp

	if deps.RotateOnUse {
		next, nextExp, err := deps.Sign(claims.UserID, claims.Email, claims.SessionID, jwt.TokenRefresh)
		if err != nil {
			return fail(RefreshFailureIssue, err)
		}

		err = deps.SessionStore.RotateRefresh(ctx, claims.SessionID, refreshToken, next, deps.RefreshTTL)
		switch {
		case err == nil:
		case deps.RefreshMismatch != nil && errors.Is(err, deps.RefreshMismatch):
			if delErr := deps.SessionStore.Delete(ctx, claims.SessionID); delErr != nil && deps.Warn != nil {
				deps.Warn("refresh reuse: session revoke failed", "session_id", claims.SessionID, "error", delErr)
			}
			return fail(RefreshFailureReuse, err)
		case deps.RedisNil != nil && errors.Is(err, deps.RedisNil):
			return fail(RefreshFailureSessionNotFound, err)
		default:
			return fail(RefreshFailureRotate, err)
		}

		out.RefreshToken = next
		out.RefreshExpiresAt = nextExp
	}

	if deps.RecordAccess {
		if err := deps.SessionStore.PutAccess(ctx, claims.SessionID, access, deps.AccessTTL); err != nil {
			return fail(RefreshFailureRecordAccess, err)
		}
	}

	return out
}
