package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/jwt"
)

var (
	// ErrSignatureInvalid is returned for malformed tokens, bad signatures,
	// unexpected algorithms and issuer or audience mismatches.
	ErrSignatureInvalid = jwt.ErrSignatureInvalid
	// ErrTokenExpired is returned when a token's exp has passed.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrTokenRevoked is returned when a token is on the revocation list.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenTypeMismatch is returned when an access token is presented
	// where a refresh token is required, or the reverse.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrSessionNotFound is returned when a session does not exist or has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps every backing store failure surfaced to callers.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrUnauthenticated is the uniform credential failure of RefreshAccessToken.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionCreationFailed wraps failures while issuing a new token pair.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrRefreshRateLimited is returned when a session exceeds its refresh budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrEngineNotReady is returned by methods called on a nil or closed service.
	ErrEngineNotReady = errors.New("session service not initialized")
)
