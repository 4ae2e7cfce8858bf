package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/jwt"
)

// VerifyOutcome classifies a verification attempt. Callers outside the
// service only ever see valid or not; the outcome feeds logs and metrics.
type VerifyOutcome int

const (
	VerifyValid VerifyOutcome = iota
	VerifyRevoked
	VerifyExpired
	VerifyMalformed
	VerifySessionMismatch
	VerifyStoreError
)

func (o VerifyOutcome) String() string {
	switch o {
	case VerifyValid:
		return "valid"
	case VerifyRevoked:
		return "revoked"
	case VerifyExpired:
		return "expired"
	case VerifyMalformed:
		return "malformed"
	case VerifySessionMismatch:
		return "session_mismatch"
	case VerifyStoreError:
		return "store_error"
	default:
		return "unknown"
	}
}

// VerifyResult carries the outcome and, when valid, the verified claims.
type VerifyResult struct {
	Outcome VerifyOutcome
	Err     error
	Claims  *jwt.TokenClaims
}

// VerifySessionStore reads the refresh record bound to a session.
type VerifySessionStore interface {
	RefreshToken(ctx context.Context, sessionID string) (string, error)
}

// VerifyDeps captures verification dependencies.
type VerifyDeps struct {
	Revocations  RevocationChecker
	Parse        func(string) (*jwt.TokenClaims, error)
	SessionStore VerifySessionStore
	ExpiredErr   error
	RedisNil     error
}

// RunVerify checks, in order: blacklist membership, signature and claims,
// and for refresh tokens that the token is still the session's current
// refresh record. Store failures fail closed.
func RunVerify(ctx context.Context, token string, deps VerifyDeps) VerifyResult {
	if token == "" {
		return VerifyResult{Outcome: VerifyMalformed, Err: errors.New("empty token")}
	}

	revoked, err := deps.Revocations.IsRevoked(ctx, token)
	if err != nil {
		return VerifyResult{Outcome: VerifyStoreError, Err: err}
	}
	if revoked {
		return VerifyResult{Outcome: VerifyRevoked}
	}

	claims, err := deps.Parse(token)
	if err != nil {
		if deps.ExpiredErr != nil && errors.Is(err, deps.ExpiredErr) {
			return VerifyResult{Outcome: VerifyExpired, Err: err}
		}
		return VerifyResult{Outcome: VerifyMalformed, Err: err}
	}

	if claims.TokenType == jwt.TokenRefresh {
		if outcome, err := checkRefreshBinding(ctx, claims.SessionID, token, deps.SessionStore, deps.RedisNil); outcome != VerifyValid {
			return VerifyResult{Outcome: outcome, Err: err, Claims: claims}
		}
	}

	return VerifyResult{Outcome: VerifyValid, Claims: claims}
}

func checkRefreshBinding(ctx context.Context, sessionID, token string, store VerifySessionStore, redisNil error) (VerifyOutcome, error) {
	stored, err := store.RefreshToken(ctx, sessionID)
	if err != nil {
		if redisNil != nil && errors.Is(err, redisNil) {
			return VerifySessionMismatch, err
		}
		return VerifyStoreError, err
	}
	if stored != token {
		return VerifySessionMismatch, errors.New("refresh token is not the session's current record")
	}
	return VerifyValid, nil
}
