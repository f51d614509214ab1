package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/messpass/fault"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	return Options{Logger: logger}
}

func appendReducer(v string) Reducer[[]string] {
	return func(cur []string) []string { return appendCopy(cur, v) }
}

func TestDoAppliesReducer(t *testing.T) {
	s := newStore[[]string]("test", nil, testOptions(t))

	err := s.Do(context.Background(), "add", func(context.Context) (Reducer[[]string], error) {
		return appendReducer("a"), nil
	})
	require.NoError(t, err)

	st := s.Snapshot()
	assert.Equal(t, []string{"a"}, st.Data)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Err)
	assert.Equal(t, uint64(1), st.Version)
	assert.False(t, st.Initialized, "only loads initialize")
}

func TestDoFailureSetsMessageAndReturnsError(t *testing.T) {
	s := newStore[[]string]("test", []string{"kept"}, testOptions(t))

	err := s.Do(context.Background(), "add", func(context.Context) (Reducer[[]string], error) {
		return nil, fault.Wrap(fault.KindConflict, errors.New("duplicate"))
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrConflict)
	assert.ErrorIs(t, err, fault.ErrStoreUpdate)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))

	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.Equal(t, "This change conflicts with existing data.", st.Err)
	assert.Equal(t, fault.KindConflict, st.ErrKind)
	assert.Equal(t, []string{"kept"}, st.Data)
}

func TestNextActionClearsError(t *testing.T) {
	s := newStore[[]string]("test", nil, testOptions(t))
	_ = s.Do(context.Background(), "fail", func(context.Context) (Reducer[[]string], error) {
		return nil, errors.New("x")
	})
	require.NotEmpty(t, s.Snapshot().Err)

	require.NoError(t, s.Do(context.Background(), "ok", func(context.Context) (Reducer[[]string], error) {
		return nil, nil
	}))
	assert.Empty(t, s.Snapshot().Err)
}

func TestPanicsNeverLeaveLoading(t *testing.T) {
	s := newStore[[]string]("test", nil, testOptions(t))

	err := s.Do(context.Background(), "panic", func(context.Context) (Reducer[[]string], error) {
		panic("remote blew up")
	})
	var pe *fault.PanicError
	require.ErrorAs(t, err, &pe)
	assert.False(t, s.IsLoading())

	err = s.Do(context.Background(), "reducer-panic", func(context.Context) (Reducer[[]string], error) {
		return func([]string) []string { panic("bad reducer") }, nil
	})
	require.ErrorAs(t, err, &pe)
	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.NotEmpty(t, st.Err)
}

func TestLoadingWhileAnyActionInFlight(t *testing.T) {
	s := newStore[[]string]("test", nil, testOptions(t))
	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	started := make(chan struct{}, 2)

	run := func(v string, release chan struct{}) <-chan error {
		done := make(chan error, 1)
		go func() {
			done <- s.Do(context.Background(), "add", func(context.Context) (Reducer[[]string], error) {
				started <- struct{}{}
				<-release
				return appendReducer(v), nil
			})
		}()
		return done
	}

	doneA := run("a", releaseA)
	doneB := run("b", releaseB)
	<-started
	<-started
	assert.True(t, s.IsLoading())

	close(releaseA)
	require.NoError(t, <-doneA)
	assert.True(t, s.IsLoading(), "b still in flight")

	close(releaseB)
	require.NoError(t, <-doneB)
	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.ElementsMatch(t, []string{"a", "b"}, st.Data, "reducers compose over the latest state")
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	var events []ActionEvent
	var mu sync.Mutex
	opts := testOptions(t)
	opts.Hooks.OnAction = func(ev ActionEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}
	s := newStore[[]string]("test", nil, opts)

	release := make(chan struct{})
	started := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Load(context.Background(), func(context.Context) (Reducer[[]string], error) {
			close(started)
			<-release
			return func([]string) []string { return []string{"old"} }, nil
		})
	}()
	<-started

	require.NoError(t, s.Load(context.Background(), func(context.Context) (Reducer[[]string], error) {
		return func([]string) []string { return []string{"new"} }, nil
	}))
	close(release)
	require.NoError(t, <-firstDone)

	st := s.Snapshot()
	assert.Equal(t, []string{"new"}, st.Data)
	assert.True(t, st.Initialized)
	assert.False(t, st.IsLoading)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.False(t, events[0].Stale)
	assert.True(t, events[1].Stale)
	assert.Equal(t, "test", events[1].Store)
	assert.Equal(t, "load", events[1].Action)
}

func TestResetDiscardsInFlightActions(t *testing.T) {
	s := newStore[[]string]("test", nil, testOptions(t))
	require.NoError(t, s.Load(context.Background(), func(context.Context) (Reducer[[]string], error) {
		return func([]string) []string { return []string{"user-a"} }, nil
	}))

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Do(context.Background(), "add", func(context.Context) (Reducer[[]string], error) {
			close(started)
			<-release
			return appendReducer("late"), nil
		})
	}()
	<-started

	s.Reset()
	st := s.Snapshot()
	assert.Nil(t, st.Data)
	assert.False(t, st.Initialized)
	assert.True(t, st.IsLoading)

	close(release)
	require.NoError(t, <-done)
	st = s.Snapshot()
	assert.Nil(t, st.Data)
	assert.False(t, st.IsLoading)
}

func TestDoHonorsContext(t *testing.T) {
	s := newStore[[]string]("test", nil, testOptions(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Do(ctx, "add", func(ctx context.Context) (Reducer[[]string], error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return appendReducer("x"), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.IsLoading())
}

func TestSubscribe(t *testing.T) {
	s := newStore[[]string]("test", nil, testOptions(t))
	var loading []bool
	unsubscribe := s.Subscribe(func(st State[[]string]) { loading = append(loading, st.IsLoading) })

	require.NoError(t, s.Do(context.Background(), "add", func(context.Context) (Reducer[[]string], error) {
		return appendReducer("a"), nil
	}))
	assert.Equal(t, []bool{true, false}, loading)

	unsubscribe()
	require.NoError(t, s.Do(context.Background(), "add", func(context.Context) (Reducer[[]string], error) {
		return appendReducer("b"), nil
	}))
	assert.Len(t, loading, 2)
}

func TestPanickingSubscriberDoesNotLeaveLoading(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	s := newStore[[]string]("test", nil, Options{Logger: logger})
	s.Subscribe(func(st State[[]string]) {
		if st.IsLoading {
			panic("subscriber failure")
		}
	})

	require.NoError(t, s.Do(context.Background(), "add", func(context.Context) (Reducer[[]string], error) {
		return appendReducer("a"), nil
	}))

	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.Equal(t, []string{"a"}, st.Data)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "store callback panicked", hook.LastEntry().Message)
}

func TestActionHookReportsDuration(t *testing.T) {
	var got atomic.Value
	opts := testOptions(t)
	opts.Hooks.OnAction = func(ev ActionEvent) { got.Store(ev) }
	s := newStore[[]string]("hooked", nil, opts)

	_ = s.Do(context.Background(), "slow", func(context.Context) (Reducer[[]string], error) {
		time.Sleep(5 * time.Millisecond)
		return nil, errors.New("nope")
	})
	ev := got.Load().(ActionEvent)
	assert.Equal(t, "hooked", ev.Store)
	assert.Equal(t, "slow", ev.Action)
	assert.GreaterOrEqual(t, ev.Duration, 5*time.Millisecond)
	assert.Error(t, ev.Err)
}
