package stores

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
	"github.com/MrEthical07/messpass/provider"
	"github.com/MrEthical07/messpass/session"
	"github.com/MrEthical07/messpass/validation"
)

// AuthStoreName is the registry name of the auth store.
const AuthStoreName = "auth"

// ErrUnknownEvent is returned by HandleEvent for kinds it does not know.
var ErrUnknownEvent = errors.New("unknown auth event")

// AuthData is the auth store payload.
type AuthData struct {
	Session *session.Session
	// Offline is set when the session was restored from cache because the
	// provider could not be reached.
	Offline bool
}

// Auth mirrors the provider's session and caches it in the KV store.
type Auth struct {
	*Store[AuthData]

	provider provider.Provider
	cache    *session.Cache

	onUserChange func(prev, next *session.User)

	// changes counts sessions committed by actions other than Load. A load
	// that sees it move keeps the newer session.
	changes atomic.Uint64
}

// NewAuth returns an auth store. onUserChange, if non-nil, is called when
// the signed-in user changes, including sign-in and sign-out.
func NewAuth(p provider.Provider, cache *session.Cache, opts Options, onUserChange func(prev, next *session.User)) *Auth {
	a := &Auth{
		Store:        newStore(AuthStoreName, AuthData{}, opts),
		provider:     p,
		cache:        cache,
		onUserChange: onUserChange,
	}
	a.observer = a.observe
	return a
}

func (a *Auth) observe(prev, next AuthData) {
	if a.onUserChange == nil {
		return
	}
	var pu, nu *session.User
	if prev.Session != nil {
		pu = &prev.Session.User
	}
	if next.Session != nil {
		nu = &next.Session.User
	}
	if (pu == nil) != (nu == nil) || (pu != nil && pu.ID != nu.ID) {
		a.onUserChange(pu, nu)
	}
}

// Attach subscribes the store to provider events. The returned function
// detaches it.
func (a *Auth) Attach(ctx context.Context) (detach func()) {
	return a.provider.Subscribe(func(ev provider.Event) {
		if err := a.HandleEvent(ctx, ev); err != nil {
			a.log.WithError(err).WithField("event", ev.Kind.String()).Warn("auth event not applied")
		}
	})
}

// Load restores the cached session and revalidates it with the provider.
// When the provider is unreachable an unexpired cached session is kept and
// the store is marked Offline.
func (a *Auth) Load(ctx context.Context) error {
	start := a.changes.Load()
	var superseded bool
	restore := func(sess *session.Session, offline bool) Reducer[AuthData] {
		return func(cur AuthData) AuthData {
			if a.changes.Load() != start {
				superseded = true
				return cur
			}
			return AuthData{Session: sess.Clone(), Offline: offline}
		}
	}

	err := a.Store.Load(ctx, func(ctx context.Context) (Reducer[AuthData], error) {
		cached, err := a.cache.Load(ctx)
		if err != nil {
			a.log.WithError(err).Warn("ignoring unreadable session cache")
			cached = nil
		}

		var sess *session.Session
		if cached != nil {
			sess, err = a.provider.SetSession(ctx, cached)
		} else {
			sess, err = a.provider.GetSession(ctx)
		}

		if err != nil {
			switch fault.KindOf(err) {
			case fault.KindNetwork, fault.KindOffline, fault.KindTimeout:
				if cached == nil || cached.Expired(a.opts.Now()) {
					return restore(nil, false), nil
				}
				a.log.WithError(err).Info("provider unreachable, using cached session")
				return restore(cached, true), nil
			case fault.KindUnauthorized, fault.KindSessionExpired, fault.KindNotFound:
				if clearErr := a.cache.Clear(ctx); clearErr != nil {
					a.log.WithError(clearErr).Warn("clearing rejected session cache")
				}
				return restore(nil, false), nil
			}
			return nil, err
		}

		if err := a.persist(ctx, sess); err != nil {
			return nil, err
		}
		return restore(sess, false), nil
	})
	if err == nil && superseded {
		// The load may have rewritten the cache under the newer session.
		a.log.Debug("session changed during restore, keeping the newer one")
		err = a.persist(ctx, a.Session())
	}
	return err
}

// SignIn authenticates with the provider and caches the session.
func (a *Auth) SignIn(ctx context.Context, in domain.SignInInput) error {
	return a.Do(ctx, "sign_in", func(ctx context.Context) (Reducer[AuthData], error) {
		if err := validation.Struct(&in); err != nil {
			return nil, err
		}
		sess, err := a.provider.SignIn(ctx, in.Email, in.Password)
		if err != nil {
			return nil, err
		}
		if err := a.persist(ctx, sess); err != nil {
			return nil, err
		}
		return a.replace(sess), nil
	})
}

// SignOut ends the session. The local session is dropped even when the
// provider cannot be reached.
func (a *Auth) SignOut(ctx context.Context) error {
	return a.Do(ctx, "sign_out", func(ctx context.Context) (Reducer[AuthData], error) {
		err := a.provider.SignOut(ctx)
		if err != nil {
			switch fault.KindOf(err) {
			case fault.KindNetwork, fault.KindOffline, fault.KindTimeout:
				a.log.WithError(err).Info("provider unreachable, signing out locally")
			default:
				return nil, err
			}
		}
		if err := a.cache.Clear(ctx); err != nil {
			return nil, err
		}
		return a.replace(nil), nil
	})
}

// Refresh asks the provider for fresh tokens.
func (a *Auth) Refresh(ctx context.Context) error {
	return a.Do(ctx, "refresh", func(ctx context.Context) (Reducer[AuthData], error) {
		sess, err := a.provider.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.persist(ctx, sess); err != nil {
			return nil, err
		}
		return a.keepRole(sess), nil
	})
}

// HandleEvent applies a provider event. SignedIn and SignedOut replace the
// session; TokenRefreshed and UserUpdated update it in place. The remaining
// kinds are acknowledged without a state change.
func (a *Auth) HandleEvent(ctx context.Context, ev provider.Event) error {
	switch ev.Kind {
	case provider.InitialSessionCheck, provider.PasswordRecovery, provider.MFAChallengeVerified:
		a.log.WithField("event", ev.Kind.String()).Debug("auth event acknowledged")
		return nil
	case provider.SignedIn:
		return a.applyEvent(ctx, ev, a.replace)
	case provider.SignedOut:
		return a.Do(ctx, "event."+ev.Kind.String(), func(ctx context.Context) (Reducer[AuthData], error) {
			if err := a.cache.Clear(ctx); err != nil {
				return nil, err
			}
			return a.replace(nil), nil
		})
	case provider.TokenRefreshed, provider.UserUpdated:
		return a.applyEvent(ctx, ev, a.keepRole)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEvent, ev.Kind)
	}
}

func (a *Auth) applyEvent(ctx context.Context, ev provider.Event, reduce func(*session.Session) Reducer[AuthData]) error {
	if ev.Session == nil {
		return fmt.Errorf("%w: %s without session", ErrUnknownEvent, ev.Kind)
	}
	return a.Do(ctx, "event."+ev.Kind.String(), func(ctx context.Context) (Reducer[AuthData], error) {
		if err := a.persist(ctx, ev.Session); err != nil {
			return nil, err
		}
		return reduce(ev.Session), nil
	})
}

// keepRole returns a reducer that adopts next but keeps the role of the
// current session when the user is the same. Roles are fixed for the life of
// a session.
func (a *Auth) keepRole(next *session.Session) Reducer[AuthData] {
	return func(cur AuthData) AuthData {
		a.changes.Add(1)
		out := next.Clone()
		if cur.Session != nil && cur.Session.User.ID == out.User.ID && cur.Session.User.Role != out.User.Role {
			a.log.WithFields(logrus.Fields{
				"user":     out.User.ID,
				"role":     cur.Session.User.Role,
				"new_role": out.User.Role,
			}).Warn("ignoring role change within a session")
			out.User.Role = cur.Session.User.Role
		}
		return AuthData{Session: out}
	}
}

func (a *Auth) persist(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return a.cache.Clear(ctx)
	}
	return a.cache.Save(ctx, sess)
}

// replace returns a reducer that installs sess as the current session.
func (a *Auth) replace(sess *session.Session) Reducer[AuthData] {
	return func(AuthData) AuthData {
		a.changes.Add(1)
		return AuthData{Session: sess.Clone()}
	}
}

// Session returns a copy of the current session, or nil.
func (a *Auth) Session() *session.Session {
	return a.Snapshot().Data.Session.Clone()
}

// User returns a copy of the signed-in user, or nil.
func (a *Auth) User() *session.User {
	s := a.Snapshot().Data.Session
	if s == nil {
		return nil
	}
	u := s.User
	return &u
}

// IsAuthenticated reports whether an unexpired session is held at now.
func (a *Auth) IsAuthenticated(now time.Time) bool {
	return !a.Snapshot().Data.Session.Expired(now)
}
