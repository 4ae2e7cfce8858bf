// Package rate throttles refresh attempts per session with Redis-backed
// fixed-window counters.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Keys are
// refresh_rl:<sessionId>. A counter that lost its TTL (for example after a
// failed EXPIRE) is given one again on the next hit.
package rate
