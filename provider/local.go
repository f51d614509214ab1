package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
	"github.com/MrEthical07/messpass/internal/rate"
	"github.com/MrEthical07/messpass/internal/token"
	"github.com/MrEthical07/messpass/jwt"
	"github.com/MrEthical07/messpass/password"
	"github.com/MrEthical07/messpass/session"
	"github.com/MrEthical07/messpass/validation"
)

// LocalDeps are the collaborators of a Local provider. Limiter and Logger
// are optional.
type LocalDeps struct {
	Directory Directory
	Sessions  *session.Store
	Tokens    *jwt.Manager
	Hasher    *password.Argon2
	Limiter   *rate.Limiter
	Logger    logrus.FieldLogger
}

// LocalConfig tunes a Local provider.
type LocalConfig struct {
	// SessionTTL bounds how long a session can be refreshed.
	SessionTTL time.Duration
	Now        func() time.Time
}

// Local is a Provider backed by a Directory and a Redis session table. It
// tracks one current session, like a device-side auth client.
type Local struct {
	deps LocalDeps
	cfg  LocalConfig
	log  logrus.FieldLogger

	mu      sync.Mutex
	current *session.Session
	subs    map[uint64]func(Event)
	nextSub uint64
}

var _ Provider = (*Local)(nil)

// NewLocal returns a Local provider.
func NewLocal(deps LocalDeps, cfg LocalConfig) (*Local, error) {
	if deps.Directory == nil || deps.Sessions == nil || deps.Tokens == nil || deps.Hasher == nil {
		return nil, errors.New("provider: directory, sessions, tokens and hasher are required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("provider: session TTL must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := deps.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Local{
		deps: deps,
		cfg:  cfg,
		log:  log.WithField("component", "provider"),
		subs: make(map[uint64]func(Event)),
	}, nil
}

// SignUp registers an account. It does not sign the user in.
func (l *Local) SignUp(ctx context.Context, in domain.SignUpInput) (*session.User, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	hash, err := l.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, err)
	}
	role, _ := session.ParseRole(in.Role)
	acc := Account{
		User: session.User{
			ID:        uuid.NewString(),
			Email:     in.Email,
			Name:      in.Name,
			Role:      role,
			CreatedAt: l.cfg.Now().UTC(),
		},
		PasswordHash: hash,
	}
	if err := l.deps.Directory.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, fault.Wrap(fault.KindConflict, err)
		}
		return nil, fault.Wrap(fault.KindNetwork, err)
	}
	l.log.WithField("user", acc.User.ID).Info("account created")
	return &acc.User, nil
}

func (l *Local) SignIn(ctx context.Context, email, pw string) (*session.Session, error) {
	if err := l.deps.Limiter.Check(ctx, email, ""); err != nil {
		return nil, limiterErr(err)
	}

	acc, err := l.deps.Directory.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil, l.failSignIn(ctx, email)
	case err != nil:
		return nil, fault.Wrap(fault.KindNetwork, err)
	}

	ok, err := l.deps.Hasher.Verify(pw, acc.PasswordHash)
	if err != nil {
		l.log.WithError(err).WithField("user", acc.User.ID).Error("stored password hash unreadable")
		return nil, l.failSignIn(ctx, email)
	}
	if !ok {
		return nil, l.failSignIn(ctx, email)
	}
	if err := l.deps.Limiter.Reset(ctx, email); err != nil {
		l.log.WithError(err).Warn("resetting sign-in counter")
	}
	l.upgradeHash(ctx, acc, pw)

	sess, err := l.issue(ctx, acc.User)
	if err != nil {
		return nil, err
	}
	l.setCurrent(sess)
	l.emit(Event{Kind: SignedIn, Session: sess.Clone()})
	return sess.Clone(), nil
}

func (l *Local) failSignIn(ctx context.Context, email string) error {
	if err := l.deps.Limiter.Fail(ctx, email, ""); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		l.log.WithError(err).Warn("recording failed sign-in")
	}
	return fault.Wrap(fault.KindUnauthorized, ErrInvalidCredentials)
}

func limiterErr(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return fault.Wrap(fault.KindUnauthorized, err)
	}
	return fault.Wrap(fault.KindNetwork, err)
}

func (l *Local) upgradeHash(ctx context.Context, acc *Account, pw string) {
	stale, err := l.deps.Hasher.NeedsUpgrade(acc.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := l.deps.Hasher.Hash(pw)
	if err != nil {
		return
	}
	acc.PasswordHash = hash
	if err := l.deps.Directory.Update(ctx, *acc); err != nil {
		l.log.WithError(err).WithField("user", acc.User.ID).Warn("password rehash not saved")
	}
}

// SignOut revokes the current session. The local session is dropped and
// SignedOut emitted even when revocation fails.
func (l *Local) SignOut(ctx context.Context) error {
	l.mu.Lock()
	cur := l.current
	l.current = nil
	l.mu.Unlock()
	if cur == nil {
		return nil
	}

	l.emit(Event{Kind: SignedOut})
	if err := l.deps.Sessions.Delete(ctx, cur.ID); err != nil {
		return fault.Wrap(fault.KindNetwork, err)
	}
	return nil
}

func (l *Local) GetSession(context.Context) (*session.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.Clone(), nil
}

// SetSession validates s against the token signature and the session table.
// An expired access token is refreshed with s's refresh token.
func (l *Local) SetSession(ctx context.Context, s *session.Session) (*session.Session, error) {
	if s == nil {
		return nil, fault.Wrap(fault.KindUnauthorized, ErrNoSession)
	}

	claims, err := l.deps.Tokens.ParseAccess(s.AccessToken)
	if errors.Is(err, jwt.ErrExpired) {
		return l.refresh(ctx, s)
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindUnauthorized, err)
	}
	if claims.UID != s.User.ID || claims.SID != s.ID {
		return nil, fault.Wrap(fault.KindUnauthorized, fmt.Errorf("%w: token does not match session", jwt.ErrInvalid))
	}

	rec, err := l.deps.Sessions.Get(ctx, s.ID)
	if err != nil {
		return nil, sessionErr(err)
	}
	out := s.Clone()
	out.User.Role = rec.Role
	l.setCurrent(out)
	return out.Clone(), nil
}

// Refresh rotates the current session's tokens.
func (l *Local) Refresh(ctx context.Context) (*session.Session, error) {
	l.mu.Lock()
	cur := l.current.Clone()
	l.mu.Unlock()
	if cur == nil {
		return nil, fault.Wrap(fault.KindUnauthorized, ErrNoSession)
	}
	return l.refresh(ctx, cur)
}

func (l *Local) refresh(ctx context.Context, cur *session.Session) (*session.Session, error) {
	sid, presented, err := token.Decode(cur.RefreshToken)
	if err != nil || sid != cur.ID {
		l.dropIfCurrent(cur.ID)
		return nil, fault.Wrap(fault.KindSessionExpired, token.ErrMalformed)
	}
	next, nextHash, err := token.New(cur.ID)
	if err != nil {
		return nil, err
	}
	err = l.deps.Sessions.RotateRefresh(ctx, cur.User.ID, cur.ID, presented.Hash(), nextHash)
	if err != nil {
		if errors.Is(err, session.ErrRefreshReuse) {
			l.log.WithField("user", cur.User.ID).Warn("refresh token reuse, session revoked")
		}
		if !errors.Is(err, session.ErrRedisUnavailable) {
			l.dropIfCurrent(cur.ID)
		}
		return nil, sessionErr(err)
	}

	rec, err := l.deps.Sessions.Get(ctx, cur.ID)
	if err != nil {
		return nil, sessionErr(err)
	}
	access, exp, err := l.deps.Tokens.CreateAccess(rec.UserID, rec.SessionID, string(rec.Role))
	if err != nil {
		return nil, err
	}

	out := cur.Clone()
	out.AccessToken = access
	out.RefreshToken = next
	out.User.Role = rec.Role
	out.IssuedAt = l.cfg.Now().UTC()
	out.ExpiresAt = exp
	l.setCurrent(out)
	l.emit(Event{Kind: TokenRefreshed, Session: out.Clone()})
	return out.Clone(), nil
}

// UpdateProfile changes the signed-in user's display name.
func (l *Local) UpdateProfile(ctx context.Context, name string) (*session.Session, error) {
	if err := validation.Var(name, "required,name"); err != nil {
		return nil, err
	}
	l.mu.Lock()
	cur := l.current.Clone()
	l.mu.Unlock()
	if cur == nil {
		return nil, fault.Wrap(fault.KindUnauthorized, ErrNoSession)
	}

	acc, err := l.deps.Directory.FindByID(ctx, cur.User.ID)
	if err != nil {
		return nil, fault.Wrap(fault.KindNotFound, err)
	}
	acc.User.Name = name
	if err := l.deps.Directory.Update(ctx, *acc); err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err)
	}

	cur.User.Name = name
	l.setCurrent(cur)
	l.emit(Event{Kind: UserUpdated, Session: cur.Clone()})
	return cur.Clone(), nil
}

// Subscribe delivers InitialSessionCheck to fn before returning.
func (l *Local) Subscribe(fn func(Event)) func() {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	cur := l.current.Clone()
	l.mu.Unlock()

	fn(Event{Kind: InitialSessionCheck, Session: cur})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

func (l *Local) issue(ctx context.Context, u session.User) (*session.Session, error) {
	now := l.cfg.Now().UTC()
	sid := uuid.NewString()
	refresh, refreshHash, err := token.New(sid)
	if err != nil {
		return nil, err
	}

	rec := &session.Record{
		SessionID: sid,
		UserID:    u.ID,
		Role:      u.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(l.cfg.SessionTTL),
	}
	if err := l.deps.Sessions.Save(ctx, rec, refreshHash, l.cfg.SessionTTL); err != nil {
		return nil, sessionErr(err)
	}

	access, exp, err := l.deps.Tokens.CreateAccess(u.ID, sid, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &session.Session{
		ID:           sid,
		AccessToken:  access,
		RefreshToken: refresh,
		User:         u,
		IssuedAt:     now,
		ExpiresAt:    exp,
	}, nil
}

func (l *Local) setCurrent(s *session.Session) {
	l.mu.Lock()
	l.current = s.Clone()
	l.mu.Unlock()
}

func (l *Local) dropIfCurrent(sid string) {
	l.mu.Lock()
	dropped := l.current != nil && l.current.ID == sid
	if dropped {
		l.current = nil
	}
	l.mu.Unlock()
	if dropped {
		l.emit(Event{Kind: SignedOut})
	}
}

func (l *Local) emit(ev Event) {
	l.mu.Lock()
	subs := make([]func(Event), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func sessionErr(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrRefreshReuse):
		return fault.Wrap(fault.KindSessionExpired, err)
	case errors.Is(err, session.ErrRedisUnavailable):
		return fault.Wrap(fault.KindNetwork, err)
	}
	return err
}
