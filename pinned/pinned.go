// Package pinned manages fixed-position regions paired with in-flow
// spacers. The spacer reserves the pinned element's layout space; its
// height is the one piece of geometry that must never move while the user
// scrolls. The controller therefore derives spacer height exclusively from
// the stable viewport metric and writes it only during refresh-scheduler
// passes, never inside a scroll callback and never from the raw viewport
// height. Toolbar show/hide cannot shift the spacer mid-scroll, and a
// region collapsing its visual chrome cannot shrink its own spacer and
// pull content back across the trigger that collapsed it.
package pinned

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
)

var (
	// ErrDuplicateID is returned when a region id is already registered.
	ErrDuplicateID = errors.New("pinned: duplicate region id")
	// ErrNilWriter is returned when a region has no spacer writer.
	ErrNilWriter = errors.New("pinned: nil spacer writer")
)

// HeightMode selects how a region's spacer height is derived.
type HeightMode int

const (
	// Fixed uses a static pixel height.
	Fixed HeightMode = iota
	// ViewportLinked uses stable viewport height times a multiplier.
	ViewportLinked
)

func (m HeightMode) String() string {
	if m == ViewportLinked {
		return "viewport_linked"
	}
	return "fixed"
}

// Region declares a pinned region. The controller never touches the DOM;
// the owning feature supplies the write callbacks.
type Region struct {
	// ID identifies the region in logs and admin surfaces. Required.
	ID string

	// Mode selects the spacer height derivation.
	Mode HeightMode

	// HeightPx is the spacer height for Fixed mode.
	HeightPx float64

	// Multiplier scales the stable viewport height for ViewportLinked
	// mode. Zero means 1.0 (exactly one viewport).
	Multiplier float64

	// WriteSpacer applies a spacer height. Required. Called only during
	// refresh passes, and only when the value changed.
	WriteSpacer func(heightPx float64) error

	// WriteZIndex applies the controller-assigned stacking order to the
	// fixed element. Optional.
	WriteZIndex func(z int) error
}

// Info describes a registered region at a point in time.
type Info struct {
	ID            string  `json:"id"`
	Mode          string  `json:"mode"`
	Multiplier    float64 `json:"multiplier,omitempty"`
	SpacerHeight  float64 `json:"spacer_height"`
	ZIndex        int     `json:"z_index"`
	WriteFailures int64   `json:"write_failures,omitempty"`
}

// HeightSource supplies the stable viewport height. *viewport.Metric
// satisfies it.
type HeightSource interface {
	StableHeight() float64
}

const (
	baseZ = 100
	stepZ = 10
)

type regionEntry struct {
	region      Region
	z           int
	lastHeight  float64
	hasHeight   bool
	writeErrors int64
}

// Handle identifies a registered region for teardown.
type Handle struct {
	c    *Controller
	e    *regionEntry
	once sync.Once
}

// Unregister removes the region. Safe to call more than once.
func (h *Handle) Unregister() {
	h.once.Do(func() { h.c.remove(h.e) })
}

// Controller owns all pinned regions of a page. Safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	entries []*regionEntry
	byID    map[string]*regionEntry
	heights HeightSource
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a Controller reading stable heights from src.
func NewController(src HeightSource, opts ...Option) *Controller {
	c := &Controller{
		byID:    make(map[string]*regionEntry),
		heights: src,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register adds a region and assigns its stacking order (registration
// order, later regions on top, so a footer reveal layered after the hero
// cannot slip behind it). The spacer is not written here; the first
// refresh pass after registration sizes it.
func (c *Controller) Register(r Region) (*Handle, error) {
	if r.WriteSpacer == nil {
		return nil, fmt.Errorf("%w: region %q", ErrNilWriter, r.ID)
	}
	if r.Mode == ViewportLinked && r.Multiplier == 0 {
		r.Multiplier = 1.0
	}

	c.mu.Lock()
	if _, exists := c.byID[r.ID]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
	}
	e := &regionEntry{region: r, z: baseZ + stepZ*len(c.entries)}
	c.entries = append(c.entries, e)
	c.byID[r.ID] = e
	c.mu.Unlock()

	if r.WriteZIndex != nil {
		if err := r.WriteZIndex(e.z); err != nil {
			c.logger.Warn("pinned: z-index write failed", "id", r.ID, "error", err)
		}
	}

	c.logger.Info("pinned: region registered",
		"id", r.ID, "mode", r.Mode.String(), "z", e.z)
	return &Handle{c: c, e: e}, nil
}

// Recompute rewrites every spacer whose derived height changed. Invoked
// by the refresh scheduler; this is the only code path that writes spacer
// heights. A failing write is logged and retried on the next pass; it
// never blocks the other regions.
func (c *Controller) Recompute(reason string) {
	c.mu.Lock()
	entries := make([]*regionEntry, len(c.entries))
	copy(entries, c.entries)
	stable := c.heights.StableHeight()
	c.mu.Unlock()

	for _, e := range entries {
		h := e.region.HeightPx
		if e.region.Mode == ViewportLinked {
			h = stable * e.region.Multiplier
		}

		c.mu.Lock()
		unchanged := e.hasHeight && e.lastHeight == h
		c.mu.Unlock()
		if unchanged {
			continue
		}

		if err := e.region.WriteSpacer(h); err != nil {
			c.mu.Lock()
			e.writeErrors++
			c.mu.Unlock()
			c.logger.Warn("pinned: spacer write failed",
				"id", e.region.ID, "height", h, "reason", reason, "error", err)
			continue
		}

		c.mu.Lock()
		e.lastHeight = h
		e.hasHeight = true
		c.mu.Unlock()
		c.logger.Debug("pinned: spacer sized",
			"id", e.region.ID, "height", h, "reason", reason)
	}
}

// Regions returns an iterator over snapshots of all regions, in
// registration order.
func (c *Controller) Regions() iter.Seq[Info] {
	return func(yield func(Info) bool) {
		c.mu.Lock()
		infos := make([]Info, 0, len(c.entries))
		for _, e := range c.entries {
			infos = append(infos, c.infoLocked(e))
		}
		c.mu.Unlock()

		for _, in := range infos {
			if !yield(in) {
				return
			}
		}
	}
}

// Inspect returns a snapshot of a single region by id.
func (c *Controller) Inspect(id string) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	if !ok {
		return Info{}, false
	}
	return c.infoLocked(e), true
}

func (c *Controller) infoLocked(e *regionEntry) Info {
	in := Info{
		ID:            e.region.ID,
		Mode:          e.region.Mode.String(),
		SpacerHeight:  e.lastHeight,
		ZIndex:        e.z,
		WriteFailures: e.writeErrors,
	}
	if e.region.Mode == ViewportLinked {
		in.Multiplier = e.region.Multiplier
	}
	return in
}

func (c *Controller) remove(e *regionEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.entries {
		if cur == e {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	delete(c.byID, e.region.ID)
}
