package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/scrollsync/layout/event"
)

const defaultQueueSize = 256

// Router fans out events to all configured sinks. Delivery runs on a
// drain goroutine so a slow sink never stalls the caller; Dispatch is
// the non-blocking entry point for the scroll path, Send the
// synchronous one for callers that want the error.
type Router struct {
	sinks  []Sink
	logger *slog.Logger

	queue     chan event.Event
	done      chan struct{}
	dropped   atomic.Uint64
	closeOnce sync.Once

	// closeMu guards queue against a Dispatch racing Close; sending on a
	// closed channel panics.
	closeMu sync.RWMutex
	closed  bool
}

// NewRouter creates a fan-out router delivering to all sinks and starts
// its drain goroutine.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		sinks:  sinks,
		logger: logger,
		queue:  make(chan event.Event, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// Dispatch queues an event for asynchronous delivery. When the queue is
// full the event is dropped and counted; the caller is never blocked.
func (r *Router) Dispatch(ev event.Event) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- ev:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("sink: queue full, event dropped", "type", ev.Type, "dropped", n)
	}
}

// Send delivers an event to all sinks synchronously. One sink error does
// not block the others; errors are logged and the first encountered is
// returned.
func (r *Router) Send(ctx context.Context, ev event.Event) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, ev); err != nil {
			r.logger.Warn("sink: send event failed", "type", ev.Type, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Dropped returns the number of events discarded on a full queue.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Router) drain() {
	defer close(r.done)
	for ev := range r.queue {
		_ = r.Send(context.Background(), ev)
	}
}

// Close drains the queue, stops the drain goroutine and closes all
// sinks. Events dispatched before Close are delivered before it returns.
func (r *Router) Close() error {
	var firstErr error
	r.closeOnce.Do(func() {
		r.closeMu.Lock()
		r.closed = true
		close(r.queue)
		r.closeMu.Unlock()
		<-r.done
		for _, s := range r.sinks {
			if err := s.Close(); err != nil {
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	})
	return firstErr
}
