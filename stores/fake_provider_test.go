package stores

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/messpass/provider"
	"github.com/MrEthical07/messpass/session"
)

// fakeProvider is a scriptable provider.Provider.
type fakeProvider struct {
	mu       sync.Mutex
	current  *session.Session
	accounts map[string]*session.Session
	err      map[string]error
	gates    map[string]*gate
	subs     []func(provider.Event)
}

// gate pauses a provider call: entered is closed when the call arrives and
// the call returns once release is closed.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: make(map[string]*session.Session),
		err:      make(map[string]error),
		gates:    make(map[string]*gate),
	}
}

func (f *fakeProvider) hold(method string) *gate {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[method] = g
	f.mu.Unlock()
	return g
}

func (f *fakeProvider) pass(method string) {
	f.mu.Lock()
	g := f.gates[method]
	delete(f.gates, method)
	f.mu.Unlock()
	if g != nil {
		close(g.entered)
		<-g.release
	}
}

func (f *fakeProvider) failWith(method string, err error) {
	f.mu.Lock()
	f.err[method] = err
	f.mu.Unlock()
}

func (f *fakeProvider) takeErr(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.err[method]
	delete(f.err, method)
	return err
}

func (f *fakeProvider) emit(ev provider.Event) {
	f.mu.Lock()
	subs := append([]func(provider.Event){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (f *fakeProvider) SignIn(_ context.Context, email, password string) (*session.Session, error) {
	if err := f.takeErr("SignIn"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	s, ok := f.accounts[email+":"+password]
	if ok {
		f.current = s.Clone()
	}
	f.mu.Unlock()
	if !ok {
		return nil, provider.ErrInvalidCredentials
	}
	f.emit(provider.Event{Kind: provider.SignedIn, Session: s.Clone()})
	return s.Clone(), nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	if err := f.takeErr("SignOut"); err != nil {
		return err
	}
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	f.emit(provider.Event{Kind: provider.SignedOut})
	return nil
}

func (f *fakeProvider) GetSession(context.Context) (*session.Session, error) {
	if err := f.takeErr("GetSession"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.Clone(), nil
}

func (f *fakeProvider) SetSession(_ context.Context, s *session.Session) (*session.Session, error) {
	f.pass("SetSession")
	if err := f.takeErr("SetSession"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s.Clone()
	return s.Clone(), nil
}

func (f *fakeProvider) Refresh(context.Context) (*session.Session, error) {
	if err := f.takeErr("Refresh"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, provider.ErrNoSession
	}
	next := f.current.Clone()
	next.AccessToken += "+"
	next.ExpiresAt = next.ExpiresAt.Add(time.Hour)
	f.current = next
	return next.Clone(), nil
}

func (f *fakeProvider) Subscribe(fn func(provider.Event)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	idx := len(f.subs) - 1
	cur := f.current.Clone()
	f.mu.Unlock()

	fn(provider.Event{Kind: provider.InitialSessionCheck, Session: cur})
	return func() {
		f.mu.Lock()
		f.subs[idx] = func(provider.Event) {}
		f.mu.Unlock()
	}
}
