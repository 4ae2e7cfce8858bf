// Package middleware adapts goSession verification to net/http.
//
//   - [Guard] admits requests with a valid access token and stores the
//     payload in the request context.
//   - [RequestMetadata] records client address and user agent for audit
//     events.
//
// Decisions are delegated to Service.VerifyToken; this package never parses
// tokens or talks to Redis itself.
package middleware
