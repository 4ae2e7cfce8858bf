package goSession

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one audit record. Token strings never appear in events.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink writes audit events through a structured logger.
type SlogSink = audit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}

// Audit event types.
const (
	AuditSessionCreated      = "session_created"
	AuditSessionCreateFailed = "session_create_failed"
	AuditRefreshSuccess      = "refresh_success"
	AuditRefreshRejected     = "refresh_rejected"
	AuditRefreshReuse        = "refresh_reuse_detected"
	AuditTokenRevoked        = "token_revoked"
	AuditSessionRevoked      = "session_revoked"
	AuditUserSessionsRevoked = "user_sessions_revoked"
	AuditCleanup             = "cleanup"
)
