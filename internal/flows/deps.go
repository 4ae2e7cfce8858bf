package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. The root service builds this once and
// delegates each public method to the matching flow.
type Deps struct {
	Verify        VerifyDeps
	Refresh       RefreshDeps
	Revoke        RevokeDeps
	Introspection IntrospectionDeps
	Cleanup       CleanupDeps
}

// RevocationChecker reports blacklist membership.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RevocationWriter adds blacklist entries.
type RevocationWriter interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}
