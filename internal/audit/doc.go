// Package audit dispatches session lifecycle events asynchronously.
//
//   - [Sink] consumes events (channel, JSON lines, slog, no-op).
//   - [Dispatcher] is a bounded relay that either drops or blocks when full.
//
// The package does not decide which events exist; callers do.
package audit
