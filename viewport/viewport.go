// Package viewport maintains a stabilized viewport-height metric for
// scroll-linked layout code. Mobile browsers resize the visual viewport
// every time the URL bar collapses or expands, and any layout computation
// that reads the live height mid-scroll inherits that noise as a visible
// jump. The Metric keeps two values: the raw height, updated on every
// resize sample, and a stable height that is committed only on an
// orientation change or a resize where the width moved, the signature of
// a genuine layout change rather than toolbar chrome.
package viewport

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time view of the metric.
type Snapshot struct {
	StableHeight float64   `json:"stable_height"`
	RawHeight    float64   `json:"raw_height"`
	RawWidth     float64   `json:"raw_width"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Stats are point-in-time counters.
type Stats struct {
	Samples    int64 `json:"samples"`
	Commits    int64 `json:"commits"`
	Suppressed int64 `json:"suppressed"`
}

// Metric tracks viewport dimensions and publishes a stable height.
// Safe for concurrent use.
type Metric struct {
	mu         sync.Mutex
	rawW       float64
	rawH       float64
	stableH    float64
	capturedAt time.Time
	subs       map[int]func(Snapshot)
	nextSub    int

	now    func() time.Time
	logger *slog.Logger

	samples    atomic.Int64
	commits    atomic.Int64
	suppressed atomic.Int64
}

// Option configures a Metric.
type Option func(*Metric)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Metric) { m.logger = l }
}

// WithClock sets a custom clock function (for testing).
func WithClock(fn func() time.Time) Option {
	return func(m *Metric) { m.now = fn }
}

// New creates a Metric seeded with the initial viewport dimensions. The
// initial height is committed as the first stable height.
func New(width, height float64, opts ...Option) *Metric {
	m := &Metric{
		subs:   make(map[int]func(Snapshot)),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.rawW = width
	m.rawH = height
	m.stableH = height
	m.capturedAt = m.now()
	return m
}

// StableHeight returns the current stable height.
func (m *Metric) StableHeight() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stableH
}

// Snapshot returns the current snapshot.
func (m *Metric) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		StableHeight: m.stableH,
		RawHeight:    m.rawH,
		RawWidth:     m.rawW,
		CapturedAt:   m.capturedAt,
	}
}

// Stats returns the current counters.
func (m *Metric) Stats() Stats {
	return Stats{
		Samples:    m.samples.Load(),
		Commits:    m.commits.Load(),
		Suppressed: m.suppressed.Load(),
	}
}

// OnStableHeightChange subscribes to stable-height commits. The callback
// runs synchronously after each commit with the committed snapshot.
// The returned function unsubscribes.
func (m *Metric) OnStableHeightChange(cb func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = cb
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Resize records a resize sample. The raw dimensions always update; the
// stable height commits only when the width changed. A height-only delta
// with an unchanged width is the toolbar show/hide signature and is
// suppressed.
func (m *Metric) Resize(width, height float64) {
	m.samples.Add(1)

	m.mu.Lock()
	widthChanged := width != m.rawW
	m.rawW = width
	m.rawH = height

	if !widthChanged {
		m.suppressed.Add(1)
		stable := m.stableH
		m.mu.Unlock()
		m.logger.Debug("viewport: height-only resize suppressed",
			"raw_height", height, "stable_height", stable)
		return
	}

	snap := m.commitLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	m.notify(snap, subs, "resize")
}

// OrientationChange records an orientation change and unconditionally
// commits the new height as stable.
func (m *Metric) OrientationChange(width, height float64) {
	m.samples.Add(1)

	m.mu.Lock()
	m.rawW = width
	m.rawH = height
	snap := m.commitLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	m.notify(snap, subs, "orientation")
}

func (m *Metric) commitLocked() Snapshot {
	m.stableH = m.rawH
	m.capturedAt = m.now()
	m.commits.Add(1)
	return Snapshot{
		StableHeight: m.stableH,
		RawHeight:    m.rawH,
		RawWidth:     m.rawW,
		CapturedAt:   m.capturedAt,
	}
}

func (m *Metric) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(m.subs))
	for _, cb := range m.subs {
		out = append(out, cb)
	}
	return out
}

func (m *Metric) notify(snap Snapshot, subs []func(Snapshot), cause string) {
	m.logger.Info("viewport: stable height committed",
		"stable_height", snap.StableHeight, "width", snap.RawWidth, "cause", cause)
	for _, cb := range subs {
		cb(snap)
	}
}
