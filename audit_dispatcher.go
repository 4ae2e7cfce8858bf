package goSession

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, now func() time.Time) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		Now:        now,
	}, sink)
}

func (s *Service) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, err error, metadata map[string]string) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if ua := UserAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string, 1)
		}
		event.Metadata["user_agent"] = ua
	}

	s.audit.Emit(ctx, event)
}

func countMetadata(key string, n int) map[string]string {
	return map[string]string{key: strconv.Itoa(n)}
}
