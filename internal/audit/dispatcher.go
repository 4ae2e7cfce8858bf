package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard instead of blocking when the buffer is
	// full. Session operations then never wait on a slow sink.
	DropIfFull bool
	// Now stamps events that arrive without a timestamp. The service passes
	// its own clock so audit time agrees with session CreatedAt and
	// LastUsedAt. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher hands session lifecycle events (issue, refresh, reuse, revoke,
// sweep) to a Sink on one worker goroutine, so the caller's request path only
// pays for a channel send.
//
// A nil *Dispatcher is what NewDispatcher returns when auditing is disabled.
// Every method is safe on nil: Emit discards, Close returns at once and
// Dropped reports 0. Callers therefore never branch on the audit setting.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	queue     chan Event
	stop      chan struct{}
	stopped   atomic.Bool
	finished  sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher starts the worker. It returns nil when cfg is disabled. A
// nil sink is replaced by NoOpSink and a non-positive BufferSize by 1.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
	}

	d.finished.Add(1)
	go d.run()

	return d
}

// run delivers events until Close, then flushes whatever is still buffered.
// Sinks get a background context: the request that produced an event may
// already be gone by the time it is written.
func (d *Dispatcher) run() {
	defer d.finished.Done()

	ctx := context.Background()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(ctx, event)
		case <-d.stop:
			for {
				select {
				case event := <-d.queue:
					d.sink.Emit(ctx, event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues event for the sink. A zero Timestamp is stamped in UTC from
// Config.Now. Emit on a nil or closed dispatcher is a no-op.
//
// With DropIfFull a full buffer increments Dropped and returns immediately.
// Otherwise Emit blocks until the event is queued, ctx is done, or the
// dispatcher closes; the event is lost in the latter two cases.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now().UTC()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case d.queue <- event:
	case <-cancelled:
	case <-d.stop:
	}
}

// Close stops accepting events and blocks until every queued event reached
// the sink. It is idempotent; the service calls it from Service.Close.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.finished.Wait()
	})
}

// Dropped returns how many events DropIfFull discarded. It is 0 for a nil
// dispatcher.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
