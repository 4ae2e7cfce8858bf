package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errNil      = errors.New("nil")
	errMismatch = errors.New("mismatch")
	errStore    = errors.New("store down")
)

type fakeRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Duration
	err     error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{entries: map[string]time.Duration{}}
}

func (f *fakeRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.entries[token]
	return ok, nil
}

func (f *fakeRevocations) Add(_ context.Context, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.entries[token]; !ok {
		f.entries[token] = ttl
	}
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	refresh  map[string]string
	access   map[string]string
	err      error
	deleted  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]*session.Session{},
		refresh:  map[string]string{},
		access:   map[string]string{},
	}
}

func (f *fakeStore) put(sess *session.Session, refresh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sess.SessionID] = sess
	f.refresh[sess.SessionID] = refresh
}

func (f *fakeStore) Get(_ context.Context, sid string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[sid]
	if !ok {
		return nil, errNil
	}
	return s, nil
}

func (f *fakeStore) RefreshToken(_ context.Context, sid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	r, ok := f.refresh[sid]
	if !ok {
		return "", errNil
	}
	return r, nil
}

func (f *fakeStore) RotateRefresh(_ context.Context, sid, presented, next string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cur, ok := f.refresh[sid]
	if !ok {
		return errNil
	}
	if cur != presented {
		return errMismatch
	}
	f.refresh[sid] = next
	return nil
}

func (f *fakeStore) PutAccess(_ context.Context, sid, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.access[sid] = token
	return nil
}

func (f *fakeStore) AccessToken(_ context.Context, sid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	a, ok := f.access[sid]
	if !ok {
		return "", errNil
	}
	return a, nil
}

func (f *fakeStore) Delete(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.sessions, sid)
	delete(f.refresh, sid)
	delete(f.access, sid)
	f.deleted = append(f.deleted, sid)
	return nil
}

func (f *fakeStore) ListByUser(_ context.Context, uid string) ([]*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []*session.Session{}
	for _, s := range f.sessions {
		if s.UserID == uid {
			out = append(out, s)
		}
	}
	return out, nil
}

type fixture struct {
	now     time.Time
	codec   *jwt.Manager
	revs    *fakeRevocations
	store   *fakeStore
	warned  []string
	clockMu sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		revs:  newFakeRevocations(),
		store: newFakeStore(),
	}
	codec, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "gosession",
		Audience:      "api",
		Now:           f.clock,
	})
	require.NoError(t, err)
	f.codec = codec
	return f
}

func (f *fixture) clock() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) warn(msg string, _ ...any) {
	f.warned = append(f.warned, msg)
}

func (f *fixture) issue(t *testing.T, sid, uid string) (access, refresh string) {
	t.Helper()
	var err error
	access, _, err = f.codec.Sign(uid, uid+"@x.com", sid, jwt.TokenAccess)
	require.NoError(t, err)
	refresh, _, err = f.codec.Sign(uid, uid+"@x.com", sid, jwt.TokenRefresh)
	require.NoError(t, err)
	f.store.put(&session.Session{SessionID: sid, UserID: uid}, refresh)
	return access, refresh
}

func (f *fixture) verifyDeps() VerifyDeps {
	return VerifyDeps{
		Revocations:  f.revs,
		Parse:        f.codec.Verify,
		SessionStore: f.store,
		ExpiredErr:   jwt.ErrTokenExpired,
		RedisNil:     errNil,
	}
}

func (f *fixture) refreshDeps(rotate bool) RefreshDeps {
	return RefreshDeps{
		Revocations:     f.revs,
		Parse:           f.codec.Verify,
		Sign:            f.codec.Sign,
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		RotateOnUse:     rotate,
		SessionStore:    f.store,
		Warn:            f.warn,
		ExpiredErr:      jwt.ErrTokenExpired,
		RedisNil:        errNil,
		RefreshMismatch: errMismatch,
	}
}

func (f *fixture) revokeDeps() RevokeDeps {
	return RevokeDeps{
		DecodeUnsafe: f.codec.DecodeUnsafe,
		Now:          f.clock,
		MaxTTL:       f.codec.TTL(jwt.TokenRefresh),
		Revocations:  f.revs,
		SessionStore: f.store,
		Warn:         f.warn,
		RedisNil:     errNil,
	}
}

func TestRunVerifyOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	access, refresh := f.issue(t, "sid-1", "u1")

	res := RunVerify(ctx, access, f.verifyDeps())
	require.Equal(t, VerifyValid, res.Outcome)
	assert.Equal(t, "u1", res.Claims.UserID)

	res = RunVerify(ctx, refresh, f.verifyDeps())
	assert.Equal(t, VerifyValid, res.Outcome)

	assert.Equal(t, VerifyMalformed, RunVerify(ctx, "", f.verifyDeps()).Outcome)
	assert.Equal(t, VerifyMalformed, RunVerify(ctx, "not.a.jwt", f.verifyDeps()).Outcome)

	require.NoError(t, f.revs.Add(ctx, access, time.Minute))
	assert.Equal(t, VerifyRevoked, RunVerify(ctx, access, f.verifyDeps()).Outcome)

	f.store.refresh["sid-1"] = "something-else"
	assert.Equal(t, VerifySessionMismatch, RunVerify(ctx, refresh, f.verifyDeps()).Outcome)

	delete(f.store.refresh, "sid-1")
	assert.Equal(t, VerifySessionMismatch, RunVerify(ctx, refresh, f.verifyDeps()).Outcome)
}

func TestRunVerifyExpiredAndStoreError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	access, _ := f.issue(t, "sid-1", "u1")

	f.advance(15*time.Minute + time.Second)
	assert.Equal(t, VerifyExpired, RunVerify(ctx, access, f.verifyDeps()).Outcome)

	f.revs.err = errStore
	res := RunVerify(ctx, access, f.verifyDeps())
	assert.Equal(t, VerifyStoreError, res.Outcome)
	assert.ErrorIs(t, res.Err, errStore)
}

func TestVerifyOutcomeString(t *testing.T) {
	assert.Equal(t, "session_mismatch", VerifySessionMismatch.String())
	assert.Equal(t, "unknown", VerifyOutcome(99).String())
}

func TestRunRefreshWithoutRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	access, refresh := f.issue(t, "sid-1", "u1")

	res := RunRefresh(ctx, refresh, f.refreshDeps(false))
	require.Equal(t, RefreshFailureNone, res.Failure, res.Err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Empty(t, res.RefreshToken)
	assert.True(t, f.now.Add(15*time.Minute).Equal(res.AccessExpiresAt))

	again := RunRefresh(ctx, refresh, f.refreshDeps(false))
	assert.Equal(t, RefreshFailureNone, again.Failure, "refresh token stays valid without rotation")

	res = RunRefresh(ctx, access, f.refreshDeps(false))
	assert.Equal(t, RefreshFailureTypeMismatch, res.Failure)
	assert.True(t, res.Failure.Credential())
}

func TestRunRefreshRejectsStaleRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first := f.issue(t, "sid-1", "u1")
	f.advance(time.Second)
	_, second := f.issue(t, "sid-1", "u1")

	res := RunRefresh(ctx, first, f.refreshDeps(false))
	assert.Equal(t, RefreshFailureMismatch, res.Failure)

	res = RunRefresh(ctx, second, f.refreshDeps(false))
	assert.Equal(t, RefreshFailureNone, res.Failure)

	require.NoError(t, f.store.Delete(ctx, "sid-1"))
	res = RunRefresh(ctx, second, f.refreshDeps(false))
	assert.Equal(t, RefreshFailureSessionNotFound, res.Failure)
}

func TestRunRefreshRotationAndReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, refresh := f.issue(t, "sid-1", "u1")

	res := RunRefresh(ctx, refresh, f.refreshDeps(true))
	require.Equal(t, RefreshFailureNone, res.Failure, res.Err)
	require.NotEmpty(t, res.RefreshToken)
	assert.NotEqual(t, refresh, res.RefreshToken)
	assert.Equal(t, res.RefreshToken, f.store.refresh["sid-1"])

	reuse := RunRefresh(ctx, refresh, f.refreshDeps(true))
	assert.Equal(t, RefreshFailureReuse, reuse.Failure)
	assert.Equal(t, []string{"sid-1"}, f.store.deleted, "reuse revokes the session")

	after := RunRefresh(ctx, res.RefreshToken, f.refreshDeps(true))
	assert.Equal(t, RefreshFailureSessionNotFound, after.Failure)
}

func TestRunRefreshRecordsAccessAndPropagatesFaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, refresh := f.issue(t, "sid-1", "u1")

	deps := f.refreshDeps(false)
	deps.RecordAccess = true
	res := RunRefresh(ctx, refresh, deps)
	require.Equal(t, RefreshFailureNone, res.Failure)
	assert.Equal(t, res.AccessToken, f.store.access["sid-1"])

	deps.Sign = func(string, string, string, jwt.TokenType) (string, time.Time, error) {
		return "", time.Time{}, errors.New("hsm offline")
	}
	res = RunRefresh(ctx, refresh, deps)
	assert.Equal(t, RefreshFailureIssue, res.Failure)
	assert.False(t, res.Failure.Credential())
}

type limitAll struct{}

func (limitAll) CheckRefresh(context.Context, string) error { return errors.New("limited") }

func TestRunRefreshRateLimited(t *testing.T) {
	f := newFixture(t)
	_, refresh := f.issue(t, "sid-1", "u1")

	deps := f.refreshDeps(false)
	deps.RateLimiter = limitAll{}
	res := RunRefresh(context.Background(), refresh, deps)
	assert.Equal(t, RefreshFailureRateLimited, res.Failure)
	assert.Equal(t, "sid-1", res.SessionID)
}

type countingLimiter struct{ calls int }

func (l *countingLimiter) CheckRefresh(context.Context, string) error {
	l.calls++
	return nil
}

func TestRunRefreshStaleTokenSkipsThrottle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first := f.issue(t, "sid-1", "u1")
	f.advance(time.Second)
	_, second := f.issue(t, "sid-1", "u1")

	limiter := &countingLimiter{}
	deps := f.refreshDeps(false)
	deps.RateLimiter = limiter

	for i := 0; i < 3; i++ {
		res := RunRefresh(ctx, first, deps)
		require.Equal(t, RefreshFailureMismatch, res.Failure)
	}
	assert.Zero(t, limiter.calls)

	res := RunRefresh(ctx, second, deps)
	require.Equal(t, RefreshFailureNone, res.Failure)
	assert.Equal(t, 1, limiter.calls)
}

func TestRunRevokeToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	access, _ := f.issue(t, "sid-1", "u1")

	f.advance(5 * time.Minute)
	res := RunRevokeToken(ctx, access, f.revokeDeps())
	require.NoError(t, res.Err)
	assert.Equal(t, 10*time.Minute, res.TTL)
	assert.Equal(t, 10*time.Minute, f.revs.entries[access])

	f.advance(time.Minute)
	res = RunRevokeToken(ctx, access, f.revokeDeps())
	require.NoError(t, res.Err)
	assert.Equal(t, 10*time.Minute, f.revs.entries[access], "re-revoking keeps the first TTL")

	res = RunRevokeToken(ctx, "garbage", f.revokeDeps())
	assert.True(t, res.DecodeErr)
	assert.Error(t, res.Err)
}

func TestRunRevokeTokenCapsForgedExpiry(t *testing.T) {
	f := newFixture(t)

	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.MapClaims{
		"userId":    "u1",
		"sessionId": "sid-1",
		"tokenType": "access",
		"exp":       time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
	}).SignedString([]byte("someone-elses-key-0123456789abcdef"))
	require.NoError(t, err)

	res := RunRevokeToken(context.Background(), forged, f.revokeDeps())
	require.NoError(t, res.Err)
	assert.Equal(t, f.codec.TTL(jwt.TokenRefresh), res.TTL)
	assert.Equal(t, f.codec.TTL(jwt.TokenRefresh), f.revs.entries[forged])
}

func TestRunRevokeTokenExpiredIsNoop(t *testing.T) {
	f := newFixture(t)
	access, _ := f.issue(t, "sid-1", "u1")
	f.advance(time.Hour)
	f.revs.err = errStore

	res := RunRevokeToken(context.Background(), access, f.revokeDeps())
	assert.NoError(t, res.Err)
	assert.Zero(t, res.TTL)
}

func TestRunRevokeSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	access, _ := f.issue(t, "sid-1", "u1")
	f.store.access["sid-1"] = access

	require.NoError(t, RunRevokeSession(ctx, "sid-1", f.revokeDeps()))
	assert.NotContains(t, f.store.sessions, "sid-1")
	assert.Empty(t, f.revs.entries, "access tokens are not blacklisted by default")

	require.NoError(t, RunRevokeSession(ctx, "sid-1", f.revokeDeps()))
	require.NoError(t, RunRevokeSession(ctx, "", f.revokeDeps()))
}

func TestRunRevokeSessionBlacklistsLastAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	access, _ := f.issue(t, "sid-1", "u1")
	f.store.access["sid-1"] = access

	deps := f.revokeDeps()
	deps.BlacklistLastAccess = true
	require.NoError(t, RunRevokeSession(ctx, "sid-1", deps))
	assert.Contains(t, f.revs.entries, access)

	_, _ = f.issue(t, "sid-2", "u1")
	require.NoError(t, RunRevokeSession(ctx, "sid-2", deps), "no recorded access token is fine")
}

func TestRunRevokeAllJoinsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issue(t, "sid-1", "u1")
	f.issue(t, "sid-2", "u1")
	f.issue(t, "sid-3", "u2")

	res := RunRevokeAll(ctx, "u1", f.revokeDeps())
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Revoked)
	assert.Contains(t, f.store.sessions, "sid-3")

	f.store.err = errStore
	res = RunRevokeAll(ctx, "u2", f.revokeDeps())
	assert.ErrorIs(t, res.Err, errStore)
	assert.Zero(t, res.Revoked)
}

type sweepStore struct {
	res session.SweepResult
	err error
}

func (s sweepStore) SweepWithoutTTL(context.Context, int64) (session.SweepResult, error) {
	return s.res, s.err
}

func TestRunCleanupCountsRowsAndRecords(t *testing.T) {
	res := RunCleanup(context.Background(), CleanupDeps{
		SessionStore: sweepStore{res: session.SweepResult{Sessions: 2, Records: 3, IndexPruned: 4}},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.DeletedCount)
	assert.Equal(t, 4, res.IndexPruned)
}

func TestRunGetSession(t *testing.T) {
	f := newFixture(t)
	f.issue(t, "sid-1", "u1")
	notFound := errors.New("not found")

	deps := IntrospectionDeps{
		SessionStore:       introspectionStore{f.store},
		SessionNotFoundErr: notFound,
		RedisNil:           errNil,
	}

	sess, err := RunGetSession(context.Background(), "sid-1", deps)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	_, err = RunGetSession(context.Background(), "sid-x", deps)
	assert.ErrorIs(t, err, notFound)

	deps.ValidSessionID = func(string) bool { return false }
	_, err = RunGetSession(context.Background(), "sid-1", deps)
	assert.ErrorIs(t, err, notFound)

	_, err = RunListSessions(context.Background(), "u1", IntrospectionDeps{EngineNotReadyErr: notFound})
	assert.ErrorIs(t, err, notFound)
}

type introspectionStore struct {
	*fakeStore
}

func (introspectionStore) EstimateActiveSessions(context.Context) (int, error) { return 0, nil }
func (introspectionStore) Ping(context.Context) (time.Duration, error)         { return 0, nil }
