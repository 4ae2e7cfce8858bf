// Package session provides Redis-backed persistence for session rows, the
// per-session refresh record, the last-issued access token, and the
// per-user session index.
//
// # Key layout
//
//	token:<sessionId>         JSON session row, TTL = refresh lifetime, reset on touch
//	refresh:<sessionId>       current refresh token string, TTL = refresh lifetime
//	access:<sessionId>        last access token string, TTL = access lifetime
//	user_sessions:<userId>    set of session ids, TTL bumped on every write
//
// Every key may carry a configurable namespace prefix.
//
// # Consistency
//
// Writes that touch one session (create, delete) run in a single MULTI/EXEC.
// Operations spanning several sessions are not transactional; each session
// still carries its own TTL ceiling.
//
// This package does not interpret tokens or make authentication decisions.
package session
