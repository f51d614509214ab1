package provider

import (
	"context"
	"errors"

	"github.com/MrEthical07/messpass/session"
)

// EventKind is the auth state change delivered to subscribers.
type EventKind uint8

const (
	InitialSessionCheck EventKind = iota + 1
	SignedIn
	SignedOut
	PasswordRecovery
	TokenRefreshed
	UserUpdated
	MFAChallengeVerified
)

// EventKinds lists every kind a provider may emit.
var EventKinds = []EventKind{
	InitialSessionCheck,
	SignedIn,
	SignedOut,
	PasswordRecovery,
	TokenRefreshed,
	UserUpdated,
	MFAChallengeVerified,
}

func (k EventKind) String() string {
	switch k {
	case InitialSessionCheck:
		return "initial_session"
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case PasswordRecovery:
		return "password_recovery"
	case TokenRefreshed:
		return "token_refreshed"
	case UserUpdated:
		return "user_updated"
	case MFAChallengeVerified:
		return "mfa_challenge_verified"
	}
	return "unknown"
}

// Event is an auth state change. Session is nil for SignedOut and when no
// session exists.
type Event struct {
	Kind    EventKind
	Session *session.Session
}

var (
	// ErrInvalidCredentials is returned by SignIn for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSession is returned by Refresh when nobody is signed in.
	ErrNoSession = errors.New("no active session")
)

// Provider authenticates users and issues sessions.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*session.Session, error)
	SignOut(ctx context.Context) error
	// GetSession returns the provider's current session, or nil.
	GetSession(ctx context.Context) (*session.Session, error)
	// SetSession adopts a previously issued session after validating it,
	// refreshing it when the access token has expired.
	SetSession(ctx context.Context, s *session.Session) (*session.Session, error)
	Refresh(ctx context.Context) (*session.Session, error)
	// Subscribe registers fn for auth events. fn immediately receives an
	// InitialSessionCheck event carrying the current session.
	Subscribe(fn func(Event)) (unsubscribe func())
}
