// Package internal holds helpers private to goSession.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: orchestration behind every Service operation
//   - rate: Redis-backed per-session refresh throttle
package internal
