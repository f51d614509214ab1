package messpass

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/backend"
	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
	"github.com/MrEthical07/messpass/guard"
	"github.com/MrEthical07/messpass/internal/audit"
	"github.com/MrEthical07/messpass/lifecycle"
	"github.com/MrEthical07/messpass/provider"
	"github.com/MrEthical07/messpass/session"
	"github.com/MrEthical07/messpass/stores"
)

// App owns one signed-in session, the domain stores and their lifecycle.
// It is safe for concurrent use.
type App struct {
	cfg   Config
	log   logrus.FieldLogger
	now   func() time.Time
	paths guard.Paths

	provider   provider.Provider
	manager    *lifecycle.Manager
	breaker    *backend.Breaker
	auth       *stores.Auth
	membership *stores.Membership
	meals      *stores.Meals
	absences   *stores.Absences
	network    *stores.Network

	metrics *Metrics
	audit   *audit.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	detach  func()
	unwatch func()
}

func (a *App) register() error {
	steps := []struct {
		name   string
		loader lifecycle.Loader
		deps   []string
	}{
		{StoreNetwork, a.network.Load, nil},
		{StoreAuth, a.auth.Load, nil},
		{StoreMembership, a.forUser(a.membership.Load, a.membership.Reset), []string{StoreAuth}},
		{StoreMeals, a.forUser(a.meals.Load, a.meals.Reset), []string{StoreAuth}},
		{StoreAbsences, a.forUser(a.absences.Load, a.absences.Reset), []string{StoreAuth}},
	}
	for _, s := range steps {
		if err := a.manager.Register(s.name, s.loader, s.deps...); err != nil {
			return err
		}
	}
	return nil
}

// forUser adapts a user-scoped load. Without a signed-in user the store is
// emptied and counts as loaded.
func (a *App) forUser(load func(context.Context, string) error, reset func()) lifecycle.Loader {
	return func(ctx context.Context) error {
		u := a.auth.User()
		if u == nil {
			reset()
			return nil
		}
		return load(ctx, u.ID)
	}
}

// Start subscribes to provider events and loads every store. Load failures
// do not make Start fail; they show up in StoreState. Start may be called
// again to retry stores in Error.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	attach := !a.started
	a.started = true
	a.mu.Unlock()

	if attach {
		detach := a.auth.Attach(a.ctx)
		a.mu.Lock()
		a.detach = detach
		a.mu.Unlock()
	}
	return a.manager.InitializeAll(ctx)
}

// Close detaches from the provider, cancels in-flight loads and flushes
// the audit trail.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	detach := a.detach
	a.mu.Unlock()

	if detach != nil {
		detach()
	}
	a.cancel()
	a.manager.Close()
	if a.unwatch != nil {
		a.unwatch()
	}
	a.audit.Close()
}

// Snapshot collects the guard inputs. The auth store counts as initialized
// once its load has finished either way, so a failed restore degrades to
// signed out. Membership must be Ready and loaded for the current user: a
// failed load, or data still belonging to the previous user, keeps the guard
// in Loading rather than deciding on someone else's subscription.
func (a *App) Snapshot() guard.Snapshot {
	now := a.now()
	authState := a.manager.State(StoreAuth)
	user := a.auth.User()
	var userID string
	if user != nil {
		userID = user.ID
	}
	membershipReady := a.manager.State(StoreMembership).Ready() && a.membership.LoadedFor() == userID
	return guard.Snapshot{
		AuthInitialized:       authState.Status != lifecycle.Initializing,
		Authenticated:         a.auth.IsAuthenticated(now),
		User:                  user,
		MembershipInitialized: membershipReady,
		MembershipActive:      membershipReady && a.membership.Status(now).IsActive,
	}
}

// Decide runs the access guard for a route protected with opts.
func (a *App) Decide(opts GuardOptions) Decision {
	snap := a.Snapshot()
	d := a.paths.Decide(opts, snap)
	switch d.Kind {
	case guard.Allow:
		a.metrics.Inc(MetricGuardAllow)
	case guard.Loading:
		a.metrics.Inc(MetricGuardLoading)
	case guard.Redirect:
		a.metrics.Inc(MetricGuardRedirect)
		ev := AuditEvent{Type: AuditGuardRedirect, Path: d.Path, Success: true,
			Metadata: map[string]string{"reason": string(d.Reason)}}
		if snap.User != nil {
			ev.UserID = snap.User.ID
		}
		a.emit(ev)
	}
	return d
}

// SignIn authenticates with email and password. The user-scoped stores
// reload for the new user.
func (a *App) SignIn(ctx context.Context, email, pw string) error {
	err := a.auth.SignIn(ctx, domain.SignInInput{Email: email, Password: pw})
	ev := AuditEvent{Type: AuditSignIn, Success: err == nil, Metadata: map[string]string{"email": email}}
	if err != nil {
		a.metrics.Inc(MetricSignInFailure)
		ev.Error = fault.KindOf(err).String()
	} else {
		a.metrics.Inc(MetricSignInSuccess)
		if s := a.auth.Session(); s != nil {
			ev.UserID, ev.SessionID = s.User.ID, s.ID
		}
	}
	a.emit(ev)
	return err
}

// SignUp registers an account with the provider. It does not sign in.
func (a *App) SignUp(ctx context.Context, in domain.SignUpInput) (*User, error) {
	p, ok := a.provider.(interface {
		SignUp(context.Context, domain.SignUpInput) (*session.User, error)
	})
	if !ok {
		return nil, ErrSignUpUnsupported
	}
	u, err := p.SignUp(ctx, in)
	ev := AuditEvent{Type: AuditSignUp, Success: err == nil}
	if err != nil {
		ev.Error = fault.KindOf(err).String()
	} else {
		ev.UserID = u.ID
	}
	a.emit(ev)
	return u, err
}

// SignOut ends the session; the user-scoped stores are emptied.
func (a *App) SignOut(ctx context.Context) error {
	var uid string
	if u := a.auth.User(); u != nil {
		uid = u.ID
	}
	err := a.auth.SignOut(ctx)
	if err == nil {
		a.metrics.Inc(MetricSignOut)
	}
	ev := AuditEvent{Type: AuditSignOut, UserID: uid, Success: err == nil}
	if err != nil {
		ev.Error = fault.KindOf(err).String()
	}
	a.emit(ev)
	return err
}

// Refresh rotates the session tokens.
func (a *App) Refresh(ctx context.Context) error {
	err := a.auth.Refresh(ctx)
	if err == nil {
		a.metrics.Inc(MetricSessionRefreshed)
	}
	return err
}

func (a *App) requireUser() (*User, error) {
	u := a.auth.User()
	if u == nil {
		return nil, fault.Wrap(fault.KindUnauthorized, ErrNotSignedIn)
	}
	return u, nil
}

// RequestRenewal asks for a membership renewal for the signed-in user.
func (a *App) RequestRenewal(ctx context.Context, in domain.RenewalInput) error {
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	return a.membership.RequestRenewal(ctx, u.ID, in)
}

// SubmitRating rates a meal as the signed-in user.
func (a *App) SubmitRating(ctx context.Context, in domain.RatingInput) error {
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	return a.meals.SubmitRating(ctx, u.ID, in)
}

// RegisterAbsence plans an absence for the signed-in user.
func (a *App) RegisterAbsence(ctx context.Context, in domain.AbsenceInput) error {
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	return a.absences.Register(ctx, u.ID, in)
}

// CancelAbsence cancels one of the signed-in user's absences.
func (a *App) CancelAbsence(ctx context.Context, absenceID string) error {
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	return a.absences.Cancel(ctx, u.ID, absenceID)
}

// ProbeNetwork checks backend reachability, throttled by Config.Network.
func (a *App) ProbeNetwork(ctx context.Context) (bool, error) {
	return a.network.Probe(ctx)
}

// Retry reloads a store. It is what the Retry action on an Error state runs.
func (a *App) Retry(ctx context.Context, name string) (StoreState, error) {
	return a.manager.Initialize(ctx, name)
}

// StoreState returns the lifecycle state of name; unknown names report
// Initializing.
func (a *App) StoreState(name string) StoreState {
	return a.manager.State(name)
}

// StoreStates returns every store state sorted by name.
func (a *App) StoreStates() []StoreState {
	return a.manager.States()
}

// Watch registers fn for store lifecycle transitions.
func (a *App) Watch(fn func(StoreState)) (cancel func()) {
	return a.manager.Watch(fn)
}

func (a *App) Auth() *stores.Auth             { return a.auth }
func (a *App) Membership() *stores.Membership { return a.membership }
func (a *App) Meals() *stores.Meals           { return a.meals }
func (a *App) Absences() *stores.Absences     { return a.absences }
func (a *App) Network() *stores.Network       { return a.network }
func (a *App) Paths() guard.Paths             { return a.paths }

// MetricsSnapshot returns the current counters.
func (a *App) MetricsSnapshot() MetricsSnapshot {
	return a.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped under pressure.
func (a *App) AuditDropped() uint64 {
	return a.audit.Dropped()
}

// Config returns a copy of the configuration the App was built with.
func (a *App) Config() Config { return cloneConfig(a.cfg) }
