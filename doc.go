// Package goSession provides a dual-token session subsystem: short-lived
// access tokens, long-lived refresh tokens bound to a Redis-backed session
// record, and a token blacklist for immediate revocation.
//
// A [Service] is assembled by [Builder.Build] and is safe to call from
// multiple goroutines afterwards.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Service], [Builder], [Config]
// and value types (TokenPair, TokenPayload, SessionInfo, MetricsSnapshot).
// Flow orchestration, rate limiting and audit dispatch live under internal/;
// the jwt, session and revocation packages hold the codec and the two
// Redis-backed stores.
//
// # Redis layout
//
//	token:<sessionId>          session row (JSON), TTL = refresh lifetime
//	refresh:<sessionId>        current refresh token, TTL = refresh lifetime
//	access:<sessionId>         last access token (only with access blacklisting)
//	user_sessions:<userId>     set of session ids
//	blacklist:<sha256(token)>  revoked token marker, TTL = token's remaining life
//	refresh_rl:<sessionId>     refresh throttle counter
//
// Every key is prefixed with Config.Session.KeyPrefix.
//
// # Failure behaviour
//
// VerifyToken fails closed: if the blacklist cannot be read the token is
// reported invalid. RefreshAccessToken collapses every credential problem
// into [ErrUnauthenticated]. Issuance and revocation surface store faults
// wrapped in [ErrStoreUnavailable].
package goSession
