package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or server failure from Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRefreshMismatch is returned by [Store.RotateRefresh] when the presented
// refresh token is not the one currently stored for the session.
var ErrRefreshMismatch = errors.New("refresh token mismatch")

const noExpiry = time.Duration(-1)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const rotateRefreshScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 2
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl == -1 then
  ttl = tonumber(ARGV[3])
end
if ttl <= 0 then
  redis.call("DEL", KEYS[1])
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
return 3
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed session store. It is safe for concurrent use and
// relies on Redis per-key atomicity; it holds no in-process locks.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix namespaces every key the store writes.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + "token:" + sessionID
}

func (s *Store) refreshKey(sessionID string) string {
	return s.prefix + "refresh:" + sessionID
}

func (s *Store) accessKey(sessionID string) string {
	return s.prefix + "access:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "user_sessions:" + userID
}

// Put persists a new session row together with its refresh record and
// index entry in one MULTI/EXEC.
//
//	Performance: 1 round trip (4 commands).
func (s *Store) Put(ctx context.Context, sess *Session, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	userKey := s.userKey(sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.Set(ctx, s.refreshKey(sess.SessionID), refreshToken, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session row. A missing or evicted row yields redis.Nil.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Decode(data)
}

// Touch rewrites the row with LastUsedAt = now and resets its TTL to the full
// window. The write only succeeds if the row still exists, so a touch racing
// a delete never resurrects the session.
//
//	Performance: 2 round trips (GET, then SET XX + EXPIRE pipelined).
func (s *Store) Touch(ctx context.Context, sessionID string, now time.Time, ttl time.Duration) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.LastUsedAt = now

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	var written *redis.BoolCmd
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		written = pipe.SetXX(ctx, s.key(sessionID), data, ttl)
		pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok, _ := written.Result(); !ok {
		return redis.Nil
	}
	return nil
}

// Delete removes the session row, its refresh and access records, and the
// index entry. Deleting an unknown session is not an error.
//
//	Performance: 2 round trips (GET, then MULTI/EXEC).
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	var userID string
	sess, err := s.Get(ctx, sessionID)
	switch {
	case err == nil:
		userID = sess.UserID
	case errors.Is(err, redis.Nil), errors.Is(err, ErrSessionCorrupt):
	default:
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID), s.refreshKey(sessionID), s.accessKey(sessionID))
		if userID != "" {
			pipe.SRem(ctx, s.userKey(userID), sessionID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RefreshToken returns the refresh token currently bound to the session.
func (s *Store) RefreshToken(ctx context.Context, sessionID string) (string, error) {
	token, err := s.redis.Get(ctx, s.refreshKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return token, nil
}

// RotateRefresh atomically replaces the stored refresh token with next if,
// and only if, the stored value equals presented. The record keeps its
// remaining TTL; fallbackTTL applies only to a record stored without one.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) RotateRefresh(ctx context.Context, sessionID, presented, next string, fallbackTTL time.Duration) error {
	code, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.refreshKey(sessionID)},
		presented,
		next,
		fallbackTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case rotateStatusNotFound, rotateStatusExpired:
		return redis.Nil
	case rotateStatusMismatch:
		return ErrRefreshMismatch
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, code)
	}
}

// PutAccess records the last access token issued for the session.
func (s *Store) PutAccess(ctx context.Context, sessionID, accessToken string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.accessKey(sessionID), accessToken, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AccessToken returns the last access token issued for the session, or
// redis.Nil once it has expired.
func (s *Store) AccessToken(ctx context.Context, sessionID string) (string, error) {
	token, err := s.redis.Get(ctx, s.accessKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return token, nil
}

// ListByUser returns the user's live sessions through the per-user index.
// Index members whose rows were evicted are pruned as a side effect. Rows
// whose stored owner differs from userID are skipped.
//
//	Performance: 2 round trips (SMEMBERS, pipelined GETs) + 1 SREM when pruning.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(ids))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil || sess.UserID != userID {
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sessions, nil
}

// SweepWithoutTTL deletes session rows and records that were stored without
// a TTL and prunes index members pointing at rows that no longer exist.
// Rows with a TTL are left to Redis expiry.
//
// This is an O(keyspace) maintenance operation and must not run on a
// request path.
func (s *Store) SweepWithoutTTL(ctx context.Context, batch int64) (SweepResult, error) {
	if batch <= 0 {
		batch = 500
	}
	var res SweepResult

	err := s.scan(ctx, s.prefix+"token:*", batch, func(keys []string) error {
		orphans, err := s.keysWithoutTTL(ctx, keys)
		if err != nil || len(orphans) == 0 {
			return err
		}

		owners := make(map[string]string, len(orphans))
		for _, key := range orphans {
			data, getErr := s.redis.Get(ctx, key).Bytes()
			if getErr != nil {
				if errors.Is(getErr, redis.Nil) {
					continue
				}
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, getErr)
			}
			if sess, decErr := Decode(data); decErr == nil {
				owners[key] = sess.UserID
			}
		}

		_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range orphans {
				sessionID := key[len(s.prefix+"token:"):]
				pipe.Del(ctx, key)
				if userID, ok := owners[key]; ok {
					pipe.SRem(ctx, s.userKey(userID), sessionID)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		res.Sessions += len(orphans)
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, pattern := range []string{s.prefix + "refresh:*", s.prefix + "access:*"} {
		err := s.scan(ctx, pattern, batch, func(keys []string) error {
			orphans, err := s.keysWithoutTTL(ctx, keys)
			if err != nil || len(orphans) == 0 {
				return err
			}
			if err := s.redis.Del(ctx, orphans...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			res.Records += len(orphans)
			return nil
		})
		if err != nil {
			return res, err
		}
	}

	err = s.scan(ctx, s.prefix+"user_sessions:*", batch, func(keys []string) error {
		for _, userKey := range keys {
			pruned, err := s.pruneIndex(ctx, userKey)
			if err != nil {
				return err
			}
			res.IndexPruned += pruned
		}
		return nil
	})

	return res, err
}

// EstimateActiveSessions counts session rows with SCAN. Admin-only O(n).
func (s *Store) EstimateActiveSessions(ctx context.Context) (int, error) {
	total := 0
	err := s.scan(ctx, s.prefix+"token:*", 1000, func(keys []string) error {
		total += len(keys)
		return nil
	})
	return total, err
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) scan(ctx context.Context, pattern string, batch int64, fn func([]string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, batch).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *Store) keysWithoutTTL(ctx context.Context, keys []string) ([]string, error) {
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.DurationCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.PTTL(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]string, 0)
	for i, cmd := range cmds {
		if cmd.Val() == noExpiry {
			out = append(out, keys[i])
		}
	}
	return out, nil
}

func (s *Store) pruneIndex(ctx context.Context, userKey string) (int, error) {
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			stale = append(stale, ids[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return len(stale), nil
}
