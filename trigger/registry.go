package trigger

import (
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Stats are point-in-time registry counters.
type Stats struct {
	Ticks      int64 `json:"ticks"`
	Triggers   int   `json:"triggers"`
	Inert      int   `json:"inert"`
	Degraded   int64 `json:"degraded"`
	Recomputes int64 `json:"recomputes"`
}

type entryKind int

const (
	kindScrub entryKind = iota
	kindThreshold
)

type entry struct {
	id   string
	kind entryKind

	// scrub
	start, end   float64
	measureRange func() (float64, float64, error)
	onProgress   func(float64)
	lastProgress float64
	hasProgress  bool

	// threshold
	machine    *Machine
	measurePos func() (float64, error)

	// inert: the target geometry could not be measured at registration.
	// The entry stays registered and may come live on a later pass.
	inert bool
	// degraded: the trigger's callback panicked; the trigger is retired
	// without affecting the others.
	degraded bool
}

// Registry owns the page's single scroll entry point and evaluates every
// registered trigger against each position sample in registration order.
// Safe for concurrent use, though the driving model is one event loop.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
	byID    map[string]*entry
	lastPos float64
	hasPos  bool

	logger *slog.Logger

	ticks      atomic.Int64
	degraded   atomic.Int64
	recomputes atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID:   make(map[string]*entry),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterScrub adds a scrub trigger. A failing Measure is a soft
// failure: the trigger is registered inert, a warning is logged, and nil
// error is returned; a missing section must not take down its neighbours.
// Programmer errors (nil callback, duplicate id, inverted static range)
// are returned.
func (r *Registry) RegisterScrub(t Scrub) (Unsubscribe, error) {
	if t.OnProgress == nil {
		return nil, fmt.Errorf("%w: scrub %q needs OnProgress", ErrNilCallback, t.ID)
	}

	e := &entry{
		id:           t.ID,
		kind:         kindScrub,
		start:        t.RangeStart,
		end:          t.RangeEnd,
		measureRange: t.Measure,
		onProgress:   t.OnProgress,
	}

	if t.Measure != nil {
		start, end, err := t.Measure()
		if err != nil {
			r.logger.Warn("trigger: scrub target unmeasurable, registering inert",
				"id", t.ID, "error", err)
			e.inert = true
		} else {
			e.start, e.end = start, end
		}
	}
	if !e.inert && e.end <= e.start {
		return nil, fmt.Errorf("%w: scrub %q [%v,%v]", ErrInvalidRange, t.ID, e.start, e.end)
	}

	return r.add(e)
}

// RegisterThreshold adds a threshold trigger backed by a Machine. The
// machine's initial state is computed from the last known scroll position,
// with no callback fired. Soft-fail semantics match RegisterScrub.
func (r *Registry) RegisterThreshold(t Threshold) (Unsubscribe, error) {
	if t.OnEnter == nil || t.OnLeaveBack == nil {
		return nil, fmt.Errorf("%w: threshold %q needs OnEnter and OnLeaveBack", ErrNilCallback, t.ID)
	}

	e := &entry{
		id:         t.ID,
		kind:       kindThreshold,
		measurePos: t.Measure,
	}

	activate := t.ActivatePos
	if t.Measure != nil {
		pos, err := t.Measure()
		if err != nil {
			r.logger.Warn("trigger: threshold target unmeasurable, registering inert",
				"id", t.ID, "error", err)
			e.inert = true
		} else {
			activate = pos
		}
	}

	e.machine = NewMachine(t.ID, activate, t.HysteresisPx, t.OnEnter, t.OnLeaveBack,
		WithMachineLogger(r.logger))

	r.mu.Lock()
	pos := r.lastPos
	r.mu.Unlock()
	if !e.inert {
		e.machine.Init(pos)
	}

	return r.add(e)
}

func (r *Registry) add(e *entry) (Unsubscribe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[e.id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, e.id)
	}
	r.entries = append(r.entries, e)
	r.byID[e.id] = e

	var once sync.Once
	return func() { once.Do(func() { r.remove(e) }) }, nil
}

func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	delete(r.byID, e.id)
}

// OnScroll evaluates all triggers against a scroll position, in
// registration order. Scrub callbacks fire only when their progress value
// changed. A panicking callback degrades its own trigger and the tick
// continues with the rest.
func (r *Registry) OnScroll(pos float64) {
	r.ticks.Add(1)

	r.mu.Lock()
	r.lastPos = pos
	r.hasPos = true
	// The inert and degraded flags are written under r.mu by Recompute and
	// guard; filter while still holding it.
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.inert || e.degraded {
			continue
		}
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		switch e.kind {
		case kindScrub:
			r.evalScrub(e, pos)
		case kindThreshold:
			r.guard(e, func() { e.machine.Observe(pos) })
		}
	}
}

// AnimationDone reports that the transition animation of the named
// threshold trigger finished, re-arming its machine. Unknown or
// non-threshold ids are ignored.
func (r *Registry) AnimationDone(id string) {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok || e.kind != kindThreshold {
		return
	}
	e.machine.AnimationDone()
}

// LastPos returns the most recent scroll position sample.
func (r *Registry) LastPos() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPos
}

// Recompute re-measures every trigger's geometry. Invoked by the refresh
// scheduler, never from a scroll tick. An inert trigger whose measurement
// now succeeds comes live; a failing measurement keeps the old geometry.
// Moved geometry is re-evaluated against the last known scroll position.
func (r *Registry) Recompute(reason string) {
	r.recomputes.Add(1)

	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.degraded {
			continue
		}
		entries = append(entries, e)
	}
	pos := r.lastPos
	hasPos := r.hasPos
	r.mu.Unlock()

	for _, e := range entries {
		switch e.kind {
		case kindScrub:
			if e.measureRange == nil {
				continue
			}
			start, end, err := e.measureRange()
			if err != nil {
				r.logger.Warn("trigger: scrub re-measure failed, keeping geometry",
					"id", e.id, "reason", reason, "error", err)
				continue
			}
			if end <= start {
				r.logger.Warn("trigger: scrub re-measure returned empty range, keeping geometry",
					"id", e.id, "start", start, "end", end)
				continue
			}
			r.mu.Lock()
			e.start, e.end = start, end
			wasInert := e.inert
			e.inert = false
			r.mu.Unlock()
			if wasInert {
				r.logger.Info("trigger: scrub came live", "id", e.id)
			}
			if hasPos {
				r.evalScrub(e, pos)
			}

		case kindThreshold:
			if e.measurePos == nil {
				continue
			}
			activate, err := e.measurePos()
			if err != nil {
				r.logger.Warn("trigger: threshold re-measure failed, keeping geometry",
					"id", e.id, "reason", reason, "error", err)
				continue
			}
			r.mu.Lock()
			wasInert := e.inert
			e.inert = false
			r.mu.Unlock()
			if wasInert {
				// The measured position must land before state is
				// computed, or the machine would evaluate against its
				// stale registration-time geometry and play a phantom
				// transition. Reinit does both silently.
				e.machine.Reinit(activate, pos)
				r.logger.Info("trigger: threshold came live", "id", e.id)
				continue
			}
			r.guard(e, func() { e.machine.SetActivatePos(activate) })
		}
	}
}

// Triggers returns an iterator over snapshots of all registered triggers,
// in registration order.
func (r *Registry) Triggers() iter.Seq[Info] {
	return func(yield func(Info) bool) {
		r.mu.Lock()
		entries := make([]*entry, len(r.entries))
		copy(entries, r.entries)
		r.mu.Unlock()

		for _, e := range entries {
			if !yield(r.info(e)) {
				return
			}
		}
	}
}

// Inspect returns a snapshot of a single trigger by id.
func (r *Registry) Inspect(id string) (Info, bool) {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return Info{}, false
	}
	return r.info(e), true
}

// Stats returns the current counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	triggers := len(r.entries)
	inert := 0
	for _, e := range r.entries {
		if e.inert {
			inert++
		}
	}
	r.mu.Unlock()

	return Stats{
		Ticks:      r.ticks.Load(),
		Triggers:   triggers,
		Inert:      inert,
		Degraded:   r.degraded.Load(),
		Recomputes: r.recomputes.Load(),
	}
}

func (r *Registry) info(e *entry) Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	in := Info{ID: e.id, Inert: e.inert, Degraded: e.degraded}
	switch e.kind {
	case kindScrub:
		in.Kind = "scrub"
		in.RangeStart = e.start
		in.RangeEnd = e.end
		in.LastProgress = e.lastProgress
	case kindThreshold:
		in.Kind = "threshold"
		in.ActivatePos = e.machine.ActivatePos()
		in.HysteresisPx = e.machine.Hysteresis()
		in.State = e.machine.State().String()
	}
	return in
}

func (r *Registry) evalScrub(e *entry, pos float64) {
	r.mu.Lock()
	span := e.end - e.start
	if span <= 0 {
		r.mu.Unlock()
		return
	}
	p := (pos - e.start) / span
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	if e.hasProgress && p == e.lastProgress {
		r.mu.Unlock()
		return
	}
	e.lastProgress = p
	e.hasProgress = true
	r.mu.Unlock()

	r.guard(e, func() { e.onProgress(p) })
}

// guard runs a trigger callback, retiring the trigger if it panics so one
// broken feature degrades alone instead of failing the page.
func (r *Registry) guard(e *entry, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.mu.Lock()
			e.degraded = true
			r.mu.Unlock()
			r.degraded.Add(1)
			r.logger.Error("trigger: callback panicked, trigger degraded",
				"id", e.id, "panic", rec)
		}
	}()
	fn()
}
