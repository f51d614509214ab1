package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
	"github.com/MrEthical07/messpass/internal/rate"
	"github.com/MrEthical07/messpass/internal/token"
	"github.com/MrEthical07/messpass/jwt"
	"github.com/MrEthical07/messpass/password"
	"github.com/MrEthical07/messpass/session"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type harness struct {
	local *Local
	clock *testClock
	dir   *MemoryDirectory
}

func newHarness(t *testing.T, rdb redis.UniversalClient, maxAttempts int) *harness {
	t.Helper()
	clock := &testClock{t: time.Now()}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "messpass-test",
		Now:           clock.Now,
	})
	require.NoError(t, err)
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	dir := NewMemoryDirectory()
	local, err := NewLocal(LocalDeps{
		Directory: dir,
		Sessions:  session.NewStore(rdb, "mp"),
		Tokens:    tokens,
		Hasher:    hasher,
		Limiter:   rate.New(rdb, rate.Config{MaxAttempts: maxAttempts, Window: time.Minute}),
	}, LocalConfig{SessionTTL: time.Hour, Now: clock.Now})
	require.NoError(t, err)
	return &harness{local: local, clock: clock, dir: dir}
}

func newMiniHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newHarness(t, rdb, 3)
}

var asha = domain.SignUpInput{Email: "asha@mess.io", Name: "Asha Rao", Password: "hunter42a", Role: "member"}

func signedIn(t *testing.T, h *harness) *session.Session {
	t.Helper()
	ctx := context.Background()
	_, err := h.local.SignUp(ctx, asha)
	require.NoError(t, err)
	s, err := h.local.SignIn(ctx, asha.Email, asha.Password)
	require.NoError(t, err)
	return s
}

func TestSignUpAndSignIn(t *testing.T) {
	h := newMiniHarness(t)
	rec := &recorder{}
	unsubscribe := h.local.Subscribe(rec.record)
	defer unsubscribe()

	s := signedIn(t, h)
	assert.Equal(t, session.RoleMember, s.User.Role)
	assert.Equal(t, "Asha Rao", s.User.Name)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)
	assert.Equal(t, []EventKind{InitialSessionCheck, SignedIn}, rec.kinds())

	cur, err := h.local.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.ID, cur.ID)
}

func TestSignUpRejectsDuplicateAndInvalid(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	_, err := h.local.SignUp(ctx, asha)
	require.NoError(t, err)

	dup := asha
	dup.Email = "ASHA@mess.io"
	_, err = h.local.SignUp(ctx, dup)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))

	bad := asha
	bad.Email = "other@mess.io"
	bad.Password = "password"
	_, err = h.local.SignUp(ctx, bad)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestSignInWrongCredentials(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	_, err := h.local.SignUp(ctx, asha)
	require.NoError(t, err)

	_, err = h.local.SignIn(ctx, asha.Email, "wrongpass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, fault.KindUnauthorized, fault.KindOf(err))

	_, err = h.local.SignIn(ctx, "nobody@mess.io", "wrongpass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInThrottled(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	_, err := h.local.SignUp(ctx, asha)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = h.local.SignIn(ctx, asha.Email, "wrongpass1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = h.local.SignIn(ctx, asha.Email, asha.Password)
	assert.ErrorIs(t, err, rate.ErrRateLimited)
	assert.Equal(t, fault.KindUnauthorized, fault.KindOf(err))
}

func TestSetSessionValid(t *testing.T) {
	h := newMiniHarness(t)
	s := signedIn(t, h)

	got, err := h.local.SetSession(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, s.AccessToken, got.AccessToken)
}

func TestSetSessionRejectsTamperedToken(t *testing.T) {
	h := newMiniHarness(t)
	s := signedIn(t, h)

	forged := s.Clone()
	forged.AccessToken += "x"
	_, err := h.local.SetSession(context.Background(), forged)
	assert.Equal(t, fault.KindUnauthorized, fault.KindOf(err))

	other := s.Clone()
	other.User.ID = "someone-else"
	_, err = h.local.SetSession(context.Background(), other)
	assert.Equal(t, fault.KindUnauthorized, fault.KindOf(err))

	_, err = h.local.SetSession(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSetSessionAfterSignOut(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	s := signedIn(t, h)

	rec := &recorder{}
	h.local.Subscribe(rec.record)
	require.NoError(t, h.local.SignOut(ctx))
	assert.Equal(t, []EventKind{InitialSessionCheck, SignedOut}, rec.kinds())

	_, err := h.local.SetSession(ctx, s)
	assert.Equal(t, fault.KindSessionExpired, fault.KindOf(err))

	require.NoError(t, h.local.SignOut(ctx), "signing out twice is a no-op")
}

func TestSetSessionRefreshesExpiredAccess(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	s := signedIn(t, h)

	rec := &recorder{}
	h.local.Subscribe(rec.record)
	h.clock.Advance(2 * time.Minute)

	got, err := h.local.SetSession(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.NotEqual(t, s.AccessToken, got.AccessToken)
	assert.NotEqual(t, s.RefreshToken, got.RefreshToken)
	assert.True(t, got.ExpiresAt.After(h.clock.Now()))
	assert.Equal(t, []EventKind{InitialSessionCheck, TokenRefreshed}, rec.kinds())
}

func TestRefreshReuseRevokesSession(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	first := signedIn(t, h)

	second, err := h.local.Refresh(ctx)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	_, err = h.local.SetSession(ctx, first)
	assert.ErrorIs(t, err, session.ErrRefreshReuse)
	assert.Equal(t, fault.KindSessionExpired, fault.KindOf(err))

	_, err = h.local.SetSession(ctx, second)
	assert.Equal(t, fault.KindSessionExpired, fault.KindOf(err), "reuse revokes the whole session")

	cur, err := h.local.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestRefreshRejectsForeignToken(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	s := signedIn(t, h)

	forged, _, err := token.New(uuid.NewString())
	require.NoError(t, err)
	s.RefreshToken = forged
	h.clock.Advance(2 * time.Minute)

	_, err = h.local.SetSession(ctx, s)
	assert.ErrorIs(t, err, token.ErrMalformed)
	assert.Equal(t, fault.KindSessionExpired, fault.KindOf(err))
}

func TestRefreshWithoutSession(t *testing.T) {
	h := newMiniHarness(t)
	_, err := h.local.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, fault.KindUnauthorized, fault.KindOf(err))
}

func TestUpdateProfile(t *testing.T) {
	h := newMiniHarness(t)
	ctx := context.Background()
	s := signedIn(t, h)

	rec := &recorder{}
	h.local.Subscribe(rec.record)
	got, err := h.local.UpdateProfile(ctx, "Asha R")
	require.NoError(t, err)
	assert.Equal(t, "Asha R", got.User.Name)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, []EventKind{InitialSessionCheck, UserUpdated}, rec.kinds())

	acc, err := h.dir.FindByID(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha R", acc.User.Name)

	_, err = h.local.UpdateProfile(ctx, "R2-D2")
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestSubscribeReceivesCurrentSession(t *testing.T) {
	h := newMiniHarness(t)
	s := signedIn(t, h)

	var got Event
	unsubscribe := h.local.Subscribe(func(ev Event) { got = ev })
	assert.Equal(t, InitialSessionCheck, got.Kind)
	require.NotNil(t, got.Session)
	assert.Equal(t, s.ID, got.Session.ID)

	unsubscribe()
	unsubscribe()
	require.NoError(t, h.local.SignOut(context.Background()))
	assert.Equal(t, InitialSessionCheck, got.Kind, "no events after unsubscribe")
}

func TestSignInRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	h := newHarness(t, rdb, 0)
	_, err := h.local.SignUp(context.Background(), asha)
	require.NoError(t, err)

	_, err = h.local.SignIn(context.Background(), asha.Email, asha.Password)
	assert.Equal(t, fault.KindNetwork, fault.KindOf(err))
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	acc := Account{User: session.User{ID: "u1", Email: "A@x.io"}, PasswordHash: "h"}
	require.NoError(t, d.Create(ctx, acc))
	assert.ErrorIs(t, d.Create(ctx, acc), ErrAccountExists)

	got, err := d.FindByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.User.ID)

	acc.User.Email = "b@x.io"
	acc.PasswordHash = "h2"
	require.NoError(t, d.Update(ctx, acc))
	got, err = d.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "A@x.io", got.User.Email, "email is immutable")
	assert.Equal(t, "h2", got.PasswordHash)

	_, err = d.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, d.Update(ctx, Account{User: session.User{ID: "missing"}}), ErrAccountNotFound)
}

func TestEventKindString(t *testing.T) {
	for _, k := range EventKinds {
		assert.NotEqual(t, "unknown", k.String())
	}
	assert.Equal(t, "unknown", EventKind(0).String())
}
