// Package refresh serializes and debounces trigger-geometry recomputation.
// Every "positions may be stale" signal in the coordinator (resize,
// orientation change, caller-reported DOM mutation) funnels through one
// Scheduler, which coalesces requests inside a debounce window into a
// single measurement pass. Features never own their own resize listener
// or debounce timer; independent per-feature refreshes are the cascade
// bug this package exists to remove.
package refresh

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWindow is the debounce window applied when none is configured.
const DefaultWindow = 150 * time.Millisecond

// Hook is invoked once per recomputation pass. The reason string is the
// joined reasons of the coalesced requests that produced the pass.
type Hook func(reason string)

// Stats are point-in-time counters.
type Stats struct {
	Requests     int64         `json:"requests"`
	Passes       int64         `json:"passes"`
	Coalesced    int64         `json:"coalesced"`
	LastReason   string        `json:"last_reason"`
	LastDuration time.Duration `json:"last_duration"`
}

type hookEntry struct {
	id   int
	name string
	fn   Hook
}

// Scheduler coalesces recompute requests and runs measurement passes
// sequentially, never overlapping. Safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	window  time.Duration
	hooks   []hookEntry
	nextID  int
	timer   *time.Timer
	pending []string // reasons accumulated for the next pass
	passing bool     // a pass is running
	queued  []string // reasons arrived mid-pass; nil means nothing queued
	stopped bool

	logger *slog.Logger

	requests  atomic.Int64
	passes    atomic.Int64
	coalesced atomic.Int64

	lastMu       sync.Mutex
	lastReason   string
	lastDuration time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWindow sets the debounce window.
func WithWindow(d time.Duration) Option {
	return func(s *Scheduler) { s.window = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler. Call AddHook to register pass work, then
// RequestRecompute or FlushNow to drive it.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		window: DefaultWindow,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	return s
}

// AddHook registers pass work under a name (used in logs). Hooks run in
// registration order on every pass. The returned function removes the hook.
func (s *Scheduler) AddHook(name string, fn Hook) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.hooks = append(s.hooks, hookEntry{id: id, name: name, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, h := range s.hooks {
			if h.id == id {
				s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
				return
			}
		}
	}
}

// RequestRecompute asks for a recomputation pass. Any number of requests
// inside one debounce window produce exactly one pass. A request arriving
// while a pass is running queues exactly one follow-up pass that starts
// after the in-flight pass completes.
func (s *Scheduler) RequestRecompute(reason string) {
	s.requests.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if s.passing {
		s.queued = appendReason(s.queued, reason)
		return
	}

	s.pending = appendReason(s.pending, reason)
	if s.timer != nil {
		// Window already armed: coalesce. The timer is not reset, so a
		// steady stream of requests still produces a pass once per
		// window rather than starving forever.
		s.coalesced.Add(1)
		return
	}
	s.timer = time.AfterFunc(s.window, s.fire)
}

// FlushNow cancels any armed window and runs a pass synchronously. Used
// at init so trigger positions exist before the first scroll tick.
func (s *Scheduler) FlushNow(reason string) {
	s.requests.Add(1)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.passing {
		// A synchronous flush cannot jump the queue past a running pass;
		// it degrades to a queued follow-up.
		s.queued = appendReason(s.queued, reason)
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	reasons := appendReason(s.pending, reason)
	s.pending = nil
	s.passing = true
	s.mu.Unlock()

	s.runPasses(reasons)
}

// Stop cancels any armed window. Requests after Stop are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.queued = nil
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	s.lastMu.Lock()
	reason, dur := s.lastReason, s.lastDuration
	s.lastMu.Unlock()
	return Stats{
		Requests:     s.requests.Load(),
		Passes:       s.passes.Load(),
		Coalesced:    s.coalesced.Load(),
		LastReason:   reason,
		LastDuration: dur,
	}
}

// fire is the timer callback: promote pending reasons into a pass.
func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.stopped || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	if s.passing {
		s.queued = append(s.queued, s.pending...)
		s.pending = nil
		s.mu.Unlock()
		return
	}
	reasons := s.pending
	s.pending = nil
	s.passing = true
	s.mu.Unlock()

	s.runPasses(reasons)
}

// runPasses runs one pass, then drains any requests queued mid-pass.
// Caller must have set passing=true under the lock.
func (s *Scheduler) runPasses(reasons []string) {
	for {
		s.runOne(reasons)

		s.mu.Lock()
		if len(s.queued) == 0 || s.stopped {
			s.passing = false
			s.mu.Unlock()
			return
		}
		reasons = s.queued
		s.queued = nil
		s.mu.Unlock()
	}
}

func (s *Scheduler) runOne(reasons []string) {
	reason := strings.Join(reasons, ",")

	s.mu.Lock()
	hooks := make([]hookEntry, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	start := time.Now()
	for _, h := range hooks {
		h.fn(reason)
	}
	elapsed := time.Since(start)

	s.passes.Add(1)
	s.lastMu.Lock()
	s.lastReason = reason
	s.lastDuration = elapsed
	s.lastMu.Unlock()

	s.logger.Debug("refresh: pass complete",
		"reason", reason, "hooks", len(hooks), "duration", elapsed)
}

// appendReason appends without duplicating an identical adjacent reason,
// keeping the joined log line readable under request storms.
func appendReason(reasons []string, r string) []string {
	if n := len(reasons); n > 0 && reasons[n-1] == r {
		return reasons
	}
	return append(reasons, r)
}
