package stores

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/fault"
)

// State is a published snapshot of a store. A new value replaces it on every
// transition.
type State[T any] struct {
	Data        T
	IsLoading   bool
	Err         string
	ErrKind     fault.Kind
	Version     uint64
	Initialized bool
	UpdatedAt   time.Time
}

// Reducer derives the next domain value from the latest one. It must not
// modify its argument.
type Reducer[T any] func(T) T

// ActionEvent describes a finished action.
type ActionEvent struct {
	Store    string
	Action   string
	Duration time.Duration
	Err      error
	// Stale is set when the result was discarded because a newer load or a
	// Reset superseded it.
	Stale bool
}

// Hooks receive store activity.
type Hooks struct {
	OnAction func(ActionEvent)
}

// Options are shared by every store constructor.
type Options struct {
	Logger logrus.FieldLogger
	Hooks  Hooks
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store is the generic state container behind every domain store.
type Store[T any] struct {
	name    string
	initial T
	opts    Options
	log     logrus.FieldLogger

	mu       sync.Mutex
	state    State[T]
	inflight int
	epoch    uint64
	loadSeq  uint64
	subs     map[int]func(State[T])
	nextSub  int
	observer func(prev, next T)
}

func newStore[T any](name string, initial T, opts Options) *Store[T] {
	opts = opts.withDefaults()
	return &Store[T]{
		name:    name,
		initial: initial,
		opts:    opts,
		log:     opts.Logger.WithField("store", name),
		state:   State[T]{Data: initial},
		subs:    make(map[int]func(State[T])),
	}
}

// Name returns the registry name of the store.
func (s *Store[T]) Name() string { return s.name }

// Snapshot returns the current state.
func (s *Store[T]) Snapshot() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLoading reports whether any action is in flight.
func (s *Store[T]) IsLoading() bool { return s.Snapshot().IsLoading }

// Initialized reports whether a load has succeeded since the last Reset.
func (s *Store[T]) Initialized() bool { return s.Snapshot().Initialized }

// Subscribe registers fn to receive every published state. fn runs on the
// goroutine that caused the transition.
func (s *Store[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Reset returns the store to its initial data and discards the results of
// actions still in flight.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	prev := s.state.Data
	s.epoch++
	s.loadSeq++
	s.state = State[T]{
		Data:      s.initial,
		IsLoading: s.inflight > 0,
		Version:   s.state.Version + 1,
		UpdatedAt: s.opts.Now(),
	}
	s.publishLocked(prev)
}

type ticket struct {
	epoch uint64
	load  uint64
}

// Do runs action through the store template. fn performs the remote call
// and returns the reducer to apply on success.
func (s *Store[T]) Do(ctx context.Context, action string, fn func(context.Context) (Reducer[T], error)) error {
	return s.do(ctx, action, false, fn)
}

// Load is Do for loads: on success the store becomes Initialized, and a
// completion superseded by a newer load is discarded.
func (s *Store[T]) Load(ctx context.Context, fn func(context.Context) (Reducer[T], error)) error {
	return s.do(ctx, "load", true, fn)
}

func (s *Store[T]) do(ctx context.Context, action string, isLoad bool, fn func(context.Context) (Reducer[T], error)) error {
	start := time.Now()
	t := s.begin(isLoad)

	reduce, err := fault.RecoverValue(func() (Reducer[T], error) { return fn(ctx) })
	if err == nil && reduce == nil {
		reduce = func(v T) T { return v }
	}

	stale, err := s.settle(t, isLoad, reduce, err)
	if err != nil && !isLoad {
		err = fault.Wrap(fault.KindStoreUpdate, err)
	}

	log := s.log.WithField("action", action)
	switch {
	case stale:
		log.Debug("discarding stale result")
	case err != nil:
		log.WithError(err).Warn("store action failed")
	}
	if s.opts.Hooks.OnAction != nil {
		s.opts.Hooks.OnAction(ActionEvent{
			Store:    s.name,
			Action:   action,
			Duration: time.Since(start),
			Err:      err,
			Stale:    stale,
		})
	}
	return err
}

func (s *Store[T]) begin(isLoad bool) ticket {
	s.mu.Lock()
	prev := s.state.Data
	s.inflight++
	t := ticket{epoch: s.epoch}
	if isLoad {
		s.loadSeq++
		t.load = s.loadSeq
	}
	next := s.state
	next.IsLoading = true
	next.Err = ""
	next.ErrKind = fault.KindUnknown
	next.UpdatedAt = s.opts.Now()
	s.state = next
	s.publishLocked(prev)
	return t
}

// settle finishes an action. It always decrements the in-flight count, even
// when the reducer panics.
func (s *Store[T]) settle(t ticket, isLoad bool, reduce Reducer[T], err error) (stale bool, _ error) {
	s.mu.Lock()
	prev := s.state.Data
	next := s.state
	s.inflight--
	next.IsLoading = s.inflight > 0
	next.UpdatedAt = s.opts.Now()

	stale = t.epoch != s.epoch || (isLoad && t.load != s.loadSeq)
	switch {
	case stale:
	case err != nil:
		next.Err = fault.Message(err)
		next.ErrKind = fault.KindOf(err)
	default:
		data, rerr := fault.RecoverValue(func() (T, error) { return reduce(next.Data), nil })
		if rerr != nil {
			err = rerr
			next.Err = fault.Message(rerr)
			next.ErrKind = fault.KindUnknown
			break
		}
		next.Data = data
		next.Version++
		if isLoad {
			next.Initialized = true
		}
	}
	s.state = next
	s.publishLocked(prev)
	return stale, err
}

// publishLocked releases s.mu and notifies subscribers of the new state.
func (s *Store[T]) publishLocked(prev T) {
	st := s.state
	subs := make([]func(State[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		s.notify("observer", func() { observer(prev, st.Data) })
	}
	for _, fn := range subs {
		s.notify("subscriber", func() { fn(st) })
	}
}

// notify runs a callback so that a panic in it cannot escape into the action
// template and leave the in-flight count unbalanced.
func (s *Store[T]) notify(kind string, fn func()) {
	if err := fault.Recover(func() error { fn(); return nil }); err != nil {
		s.log.WithError(err).WithField("callback", kind).Error("store callback panicked")
	}
}
