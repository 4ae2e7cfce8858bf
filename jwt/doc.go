// Package jwt signs and verifies the access and refresh tokens issued for a
// session. Both token types share one claim set and differ only in tokenType
// and lifetime.
//
// Verification failures are reduced to two sentinels: [ErrTokenExpired] and
// [ErrSignatureInvalid]. Callers that must not leak the failure reason are
// expected to collapse both further.
package jwt
