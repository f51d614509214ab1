package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/messpass/fault"
)

var (
	// ErrNotRegistered is returned for names that were never registered.
	ErrNotRegistered = errors.New("store not registered")
	// ErrAlreadyRegistered is returned when a name is registered twice.
	ErrAlreadyRegistered = errors.New("store already registered")
	// ErrUnknownDependency is returned when a dependency is registered after
	// the store that needs it.
	ErrUnknownDependency = errors.New("unknown store dependency")
	// ErrDependencyFailed is recorded on a store whose dependency ended in
	// Error.
	ErrDependencyFailed = errors.New("store dependency failed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store manager closed")
)

// RetryLabel is the label of the recovery action attached to Error states.
const RetryLabel = "Retry"

// Loader fetches a store's initial data. ctx is cancelled when the Manager
// closes or the load timeout elapses.
type Loader func(ctx context.Context) error

// Config tunes a Manager.
type Config struct {
	// LoadTimeout bounds one loader run. Zero means no limit.
	LoadTimeout time.Duration
	// OnStale is called when a completion from an older generation is
	// dropped.
	OnStale func(name string, generation uint64)
}

type load struct {
	generation uint64
	done       chan struct{}
}

type entry struct {
	loader   Loader
	deps     []string
	state    State
	inflight *load
}

// Manager is the store lifecycle registry. It is safe for concurrent use.
type Manager struct {
	cfg Config
	log logrus.FieldLogger
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	entries  map[string]*entry
	watchers map[int]func(State)
	nextID   int
	closed   bool
}

// New returns an empty Manager. A nil logger discards output.
func New(cfg Config, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		log:      logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*entry),
		watchers: make(map[int]func(State)),
	}
}

// Register adds a store. deps must already be registered, which also rules
// out dependency cycles.
func (m *Manager) Register(name string, loader Loader, deps ...string) error {
	if name == "" || loader == nil {
		return errors.New("lifecycle: name and loader are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	for _, d := range deps {
		if _, ok := m.entries[d]; !ok {
			return fmt.Errorf("%w: %s needs %s", ErrUnknownDependency, name, d)
		}
	}

	m.entries[name] = &entry{
		loader: loader,
		deps:   append([]string(nil), deps...),
		state:  State{Name: name, Status: Initializing, UpdatedAt: m.now()},
	}
	return nil
}

// Registered reports whether name has been registered.
func (m *Manager) Registered(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[name]
	return ok
}

// State returns the current state of name. Unknown names report
// Initializing so that callers show a loading indicator instead of failing.
func (m *Manager) State(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return State{Name: name, Status: Initializing}
	}
	return e.state
}

// States returns every registered state sorted by name.
func (m *Manager) States() []State {
	m.mu.Lock()
	out := make([]State, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.state)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins loading name without waiting. It joins a load already in
// flight and does nothing for Ready stores.
func (m *Manager) Start(name string) error {
	_, err := m.start(name)
	return err
}

// Initialize loads name and waits for the outcome or for ctx. The returned
// error reports only problems with the call itself; load failures are
// visible in the returned State.
func (m *Manager) Initialize(ctx context.Context, name string) (State, error) {
	l, err := m.start(name)
	if err != nil {
		return m.State(name), err
	}
	if l != nil {
		select {
		case <-l.done:
		case <-ctx.Done():
			return m.State(name), ctx.Err()
		}
	}
	return m.State(name), nil
}

// InitializeAll initializes every registered store concurrently and waits
// for all of them.
func (m *Manager) InitializeAll(ctx context.Context) error {
	m.mu.Lock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			_, err := m.Initialize(gctx, name)
			return err
		})
	}
	return g.Wait()
}

// Reset returns name to Initializing under a new generation. A load still in
// flight keeps running but its result is discarded.
func (m *Manager) Reset(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	e.inflight = nil
	e.state = State{
		Name:       name,
		Status:     Initializing,
		Generation: e.state.Generation + 1,
		UpdatedAt:  m.now(),
	}
	st, watchers := e.state, m.watcherList()
	m.mu.Unlock()

	m.notify(watchers, st)
	return nil
}

// Watch registers fn to receive every state transition. fn runs on the
// goroutine that made the transition and must not block. The returned
// function removes the watcher.
func (m *Manager) Watch(fn func(State)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}

// Close cancels in-flight loads and waits for them to return.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// start returns the load to wait on, or nil when the store is Ready.
func (m *Manager) start(name string) (*load, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	if e.state.Status == Ready {
		m.mu.Unlock()
		return nil, nil
	}
	if e.inflight != nil {
		l := e.inflight
		m.mu.Unlock()
		return l, nil
	}

	retry := e.state.Status == Error
	l := &load{generation: e.state.Generation, done: make(chan struct{})}
	e.inflight = l
	var watchers []func(State)
	if retry {
		e.state.Status = Initializing
		e.state.Err = nil
		e.state.UpdatedAt = m.now()
		watchers = m.watcherList()
	}
	st := e.state
	loader, deps := e.loader, e.deps
	m.wg.Add(1)
	m.mu.Unlock()

	if retry {
		m.log.WithField("store", name).Info("retrying store initialization")
		m.notify(watchers, st)
	}

	go m.run(name, loader, deps, l)
	return l, nil
}

func (m *Manager) run(name string, loader Loader, deps []string, l *load) {
	defer m.wg.Done()
	defer close(l.done)

	ctx := m.ctx
	if m.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.LoadTimeout)
		defer cancel()
	}

	start := time.Now()
	err := m.loadDeps(ctx, name, deps)
	if err == nil {
		err = fault.Recover(func() error { return loader(ctx) })
	}
	m.complete(name, l, err, time.Since(start))
}

func (m *Manager) loadDeps(ctx context.Context, name string, deps []string) error {
	for _, dep := range deps {
		st, err := m.Initialize(ctx, dep)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrDependencyFailed, dep, err)
		}
		if st.Status != Ready {
			msg := "not ready"
			if st.Err != nil {
				msg = st.Err.Error()
			}
			return fault.Wrap(fault.KindStoreInit, fmt.Errorf("%w: %s: %s", ErrDependencyFailed, dep, msg))
		}
	}
	return nil
}

func (m *Manager) complete(name string, l *load, err error, elapsed time.Duration) {
	log := m.log.WithFields(logrus.Fields{
		"store":      name,
		"generation": l.generation,
		"elapsed":    elapsed,
	})

	m.mu.Lock()
	e := m.entries[name]
	if e == nil || e.inflight != l {
		m.mu.Unlock()
		log.Debug("dropping stale store load")
		if m.cfg.OnStale != nil {
			m.cfg.OnStale(name, l.generation)
		}
		return
	}

	e.inflight = nil
	e.state.UpdatedAt = m.now()
	if err == nil {
		e.state.Status = Ready
		e.state.Err = nil
	} else {
		e.state.Status = Error
		e.state.Err = m.errorInfo(name, err)
	}
	st, watchers := e.state, m.watcherList()
	m.mu.Unlock()

	if err != nil {
		log.WithError(err).Warn("store initialization failed")
	} else {
		log.Debug("store ready")
	}
	m.notify(watchers, st)
}

func (m *Manager) errorInfo(name string, err error) *fault.Info {
	if fault.KindOf(err) == fault.KindUnknown {
		err = fault.Wrap(fault.KindStoreInit, err)
	}
	return fault.Normalize(err, fault.Action{
		Label: RetryLabel,
		Run: func(ctx context.Context) error {
			_, err := m.Initialize(ctx, name)
			return err
		},
	})
}

// watcherList must be called with m.mu held.
func (m *Manager) watcherList() []func(State) {
	if len(m.watchers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(m.watchers))
	for id := range m.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(State), 0, len(ids))
	for _, id := range ids {
		out = append(out, m.watchers[id])
	}
	return out
}

func (m *Manager) notify(watchers []func(State), st State) {
	for _, fn := range watchers {
		fn(st)
	}
}
