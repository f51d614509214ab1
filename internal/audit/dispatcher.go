package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/messpass/fault"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands events to a sink on one worker goroutine, so the sink
// sees them in emit order and never runs on a caller's goroutine.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	queue      chan Event
	worker     sync.WaitGroup
	dropped    atomic.Uint64

	// mu orders Emit against Close: senders hold it shared, Close holds it
	// exclusively while closing the queue.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled;
// a nil Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
	}
	d.worker.Add(1)
	go d.deliver()
	return d
}

// deliver runs until the queue is closed and empty. A panicking sink loses
// only the event it panicked on.
func (d *Dispatcher) deliver() {
	defer d.worker.Done()
	for ev := range d.queue {
		if err := fault.Recover(func() error {
			d.sink.Emit(context.Background(), ev)
			return nil
		}); err != nil {
			d.dropped.Add(1)
		}
	}
}

// Emit queues event. With DropIfFull a full queue drops the event and counts
// it; otherwise Emit waits for room or for ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops accepting events and returns once everything queued has been
// delivered. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.worker.Wait()
}

// Dropped returns how many events never reached the sink, either because the
// queue was full or because the sink panicked.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
