package flows

import (
	"context"

	"github.com/MrEthical07/goSession/session"
)

type CleanupSessionStore interface {
	SweepWithoutTTL(ctx context.Context, batch int64) (session.SweepResult, error)
}

type CleanupDeps struct {
	SessionStore CleanupSessionStore
	BatchSize    int64
}

// CleanupResult reports a sweep. DeletedCount counts session rows plus
// refresh and access records; pruned index members are reported apart.
type CleanupResult struct {
	DeletedCount    int
	SessionsDeleted int
	RecordsDeleted  int
	IndexPruned     int
	Err             error
}

// RunCleanup removes state written without a TTL. Rows that carry a TTL are
// left for the store to expire.
func RunCleanup(ctx context.Context, deps CleanupDeps) CleanupResult {
	swept, err := deps.SessionStore.SweepWithoutTTL(ctx, deps.BatchSize)
	return CleanupResult{
		DeletedCount:    swept.Sessions + swept.Records,
		SessionsDeleted: swept.Sessions,
		RecordsDeleted:  swept.Records,
		IndexPruned:     swept.IndexPruned,
		Err:             err,
	}
}
