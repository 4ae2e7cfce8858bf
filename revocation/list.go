package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or server failure from Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// List is the token blacklist. It is safe for concurrent use.
type List struct {
	redis  redis.UniversalClient
	prefix string
}

// NewList creates a blacklist backed by client. prefix namespaces its keys.
func NewList(client redis.UniversalClient, prefix string) *List {
	return &List{redis: client, prefix: prefix}
}

// Key returns the Redis key for token.
func (l *List) Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return l.prefix + "blacklist:" + hex.EncodeToString(sum[:])
}

// Add blacklists token for ttl. A non-positive ttl is a no-op because the
// token is already unusable. Re-adding an entry keeps its original TTL.
func (l *List) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.redis.SetNX(ctx, l.Key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether token is currently blacklisted.
func (l *List) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.redis.Exists(ctx, l.Key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
