// Package layout wires the scroll-coordination core (viewport metric,
// refresh scheduler, trigger registry, pinned-region controller) into a
// single Coordinator driven by declarative feature configuration.
//
// The coordinator orchestrates, it does not paint. Platform signals
// (scroll position, viewport size, orientation) come in through Scroll,
// Resize and OrientationChange; visual effects go out through the owning
// feature's Bindings callbacks. Nothing in this package touches a DOM.
package layout

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/scrollsync/layout/event"
	"github.com/hazyhaar/scrollsync/layout/internal/sink"
	"github.com/hazyhaar/scrollsync/pinned"
	"github.com/hazyhaar/scrollsync/refresh"
	"github.com/hazyhaar/scrollsync/trigger"
	"github.com/hazyhaar/scrollsync/viewport"
)

// Bindings connects declarative features to the page. The browser driver
// implements it against a live tab; tests use fakes. The coordinator only
// ever calls these; it never writes visual properties itself.
type Bindings interface {
	// WriteSpacerHeight sets a region's in-flow spacer height.
	WriteSpacerHeight(regionID string, px float64) error
	// WriteZIndex sets a region's fixed-element stacking order.
	WriteZIndex(regionID string, z int) error
	// PlayTransition starts the collapse or expand animation for a
	// threshold feature and must invoke done when the animation finishes
	// (possibly asynchronously).
	PlayTransition(triggerID string, collapsed bool, done func())
	// ApplyProgress drives a scrub feature's proportional effect.
	ApplyProgress(triggerID string, p float64)
}

// Measurer is an optional Bindings extension that resolves a selector to
// its document-space top coordinate, enabling selector-positioned
// triggers.
type Measurer interface {
	MeasureTop(selector string) (float64, error)
}

// Stats aggregates the core components' counters.
type Stats struct {
	Viewport viewport.Stats `json:"viewport"`
	Refresh  refresh.Stats  `json:"refresh"`
	Triggers trigger.Stats  `json:"triggers"`
}

// Coordinator is the top-level orchestrator. Create one per page.
type Coordinator struct {
	cfg      *Config
	logger   *slog.Logger
	bindings Bindings

	metric   *viewport.Metric
	sched    *refresh.Scheduler
	triggers *trigger.Registry
	regions  *pinned.Controller
	sinkR    *sink.Router

	mu      sync.Mutex
	started bool
	unsubs  []func()
	handles []*pinned.Handle
}

// New creates a Coordinator from configuration. Call SetBindings to
// attach a page, then Start to register the configured features and run
// the initial measurement pass.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Coordinator {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		cfg:      cfg,
		logger:   logger,
		bindings: nopBindings{},
	}

	c.metric = viewport.New(cfg.Engine.InitialWidth, cfg.Engine.InitialHeight,
		viewport.WithLogger(logger))
	c.sched = refresh.New(refresh.WithWindow(cfg.Engine.DebounceWindow),
		refresh.WithLogger(logger))
	c.triggers = trigger.New(trigger.WithLogger(logger))
	c.regions = pinned.NewController(c.metric, pinned.WithLogger(logger))
	c.sinkR = sink.NewRouter(logger, sinks...)

	return c
}

// SetBindings attaches the page bindings. Must be called before Start.
// Without bindings, feature callbacks are no-ops, which suits dry runs
// and testing the coordination logic alone.
func (c *Coordinator) SetBindings(b Bindings) {
	c.mu.Lock()
	if b != nil {
		c.bindings = b
	}
	c.mu.Unlock()
}

// Start registers all configured features and runs the initial
// measurement pass synchronously, so trigger positions and spacer heights
// exist before the first scroll tick.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("layout: coordinator already started")
	}
	c.started = true
	c.mu.Unlock()

	// Pass order matters: spacers first (they shift everything below
	// them), then trigger geometry, then the pass event.
	c.unsubs = append(c.unsubs,
		c.sched.AddHook("pinned", c.regions.Recompute),
		c.sched.AddHook("triggers", c.triggers.Recompute),
		c.sched.AddHook("emit", func(reason string) {
			c.emit(event.Event{Type: event.TypePass, Reason: reason})
		}),
		c.metric.OnStableHeightChange(func(s viewport.Snapshot) {
			c.emit(event.Event{Type: event.TypeStableHeight, Value: s.StableHeight})
		}),
	)

	for _, pc := range c.cfg.Features.Pinned {
		if err := c.registerPinned(pc); err != nil {
			c.logger.Error("layout: pinned region skipped", "id", pc.ID, "error", err)
		}
	}
	for _, tc := range c.cfg.Features.Thresholds {
		if err := c.registerThreshold(tc); err != nil {
			c.logger.Error("layout: threshold skipped", "id", tc.ID, "error", err)
		}
	}
	for _, sc := range c.cfg.Features.Scrubs {
		if err := c.registerScrub(sc); err != nil {
			c.logger.Error("layout: scrub skipped", "id", sc.ID, "error", err)
		}
	}

	c.sched.FlushNow("init")
	c.logger.Info("layout: coordinator started",
		"page", c.cfg.Page.ID,
		"pinned", len(c.cfg.Features.Pinned),
		"thresholds", len(c.cfg.Features.Thresholds),
		"scrubs", len(c.cfg.Features.Scrubs))
	return nil
}

// Stop tears everything down: triggers unregistered, regions released,
// scheduler stopped, sinks closed. No entity outlives Stop.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	unsubs := c.unsubs
	handles := c.handles
	c.unsubs = nil
	c.handles = nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	for _, h := range handles {
		h.Unregister()
	}
	c.sched.Stop()
	if err := c.sinkR.Close(); err != nil {
		c.logger.Warn("layout: sink close failed", "error", err)
	}
	c.logger.Info("layout: coordinator stopped", "page", c.cfg.Page.ID)
}

// Scroll feeds a scroll-position sample to the trigger registry. This is
// the page's single scroll entry point; nothing else in the module reacts
// to scroll position.
func (c *Coordinator) Scroll(pos float64) {
	c.triggers.OnScroll(pos)
}

// Resize feeds a viewport resize sample. Height-only deltas are absorbed
// by the metric; the geometry pass is debounced either way.
func (c *Coordinator) Resize(width, height float64) {
	c.metric.Resize(width, height)
	c.sched.RequestRecompute("resize")
}

// OrientationChange feeds an orientation change, which always commits a
// new stable height.
func (c *Coordinator) OrientationChange(width, height float64) {
	c.metric.OrientationChange(width, height)
	c.sched.RequestRecompute("orientation")
}

// RequestRecompute asks for a geometry pass. Callers report DOM
// mutations that moved trigger targets; the module does not watch for
// mutations itself.
func (c *Coordinator) RequestRecompute(reason string) {
	c.sched.RequestRecompute(reason)
}

// Viewport returns the current viewport snapshot.
func (c *Coordinator) Viewport() viewport.Snapshot { return c.metric.Snapshot() }

// Triggers returns an iterator over registered trigger snapshots.
func (c *Coordinator) Triggers() iter.Seq[trigger.Info] { return c.triggers.Triggers() }

// Regions returns an iterator over registered region snapshots.
func (c *Coordinator) Regions() iter.Seq[pinned.Info] { return c.regions.Regions() }

// Stats returns aggregated component counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Viewport: c.metric.Stats(),
		Refresh:  c.sched.Stats(),
		Triggers: c.triggers.Stats(),
	}
}

// Registry exposes the trigger registry for programmatic (non-config)
// feature registration.
func (c *Coordinator) Registry() *trigger.Registry { return c.triggers }

// PinnedController exposes the region controller for programmatic
// registration.
func (c *Coordinator) PinnedController() *pinned.Controller { return c.regions }

func (c *Coordinator) registerPinned(pc PinnedConfig) error {
	mode := pinned.ViewportLinked
	if pc.Mode == "fixed" {
		mode = pinned.Fixed
	}
	h, err := c.regions.Register(pinned.Region{
		ID:         pc.ID,
		Mode:       mode,
		HeightPx:   pc.HeightPx,
		Multiplier: pc.Multiplier,
		WriteSpacer: func(px float64) error {
			return c.bindings.WriteSpacerHeight(pc.ID, px)
		},
		WriteZIndex: func(z int) error {
			return c.bindings.WriteZIndex(pc.ID, z)
		},
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.handles = append(c.handles, h)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) registerThreshold(tc ThresholdConfig) error {
	measure := c.thresholdMeasure(tc)

	hyst := tc.HysteresisPx
	if hyst <= 0 {
		est := tc.ActivatePx
		if measure != nil {
			if v, err := measure(); err == nil {
				est = v
			}
		}
		hyst = c.cfg.Engine.HysteresisFrac * est
	}

	unsub, err := c.triggers.RegisterThreshold(trigger.Threshold{
		ID:           tc.ID,
		ActivatePos:  tc.ActivatePx,
		HysteresisPx: hyst,
		Measure:      measure,
		OnEnter: func() {
			c.emit(event.Event{Type: event.TypeTransition, TriggerID: tc.ID, State: "collapsed"})
			c.bindings.PlayTransition(tc.ID, true, func() { c.triggers.AnimationDone(tc.ID) })
		},
		OnLeaveBack: func() {
			c.emit(event.Event{Type: event.TypeTransition, TriggerID: tc.ID, State: "expanded"})
			c.bindings.PlayTransition(tc.ID, false, func() { c.triggers.AnimationDone(tc.ID) })
		},
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) registerScrub(sc ScrubConfig) error {
	unsub, err := c.triggers.RegisterScrub(trigger.Scrub{
		ID:         sc.ID,
		RangeStart: sc.StartPx,
		RangeEnd:   sc.EndPx,
		Measure:    c.scrubMeasure(sc),
		OnProgress: func(p float64) {
			c.bindings.ApplyProgress(sc.ID, p)
			if p == 0 || p == 1 {
				c.emit(event.Event{Type: event.TypeScrub, TriggerID: sc.ID, Value: p})
			}
		},
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	return nil
}

// thresholdMeasure builds the re-measure closure for a threshold, or nil
// for a purely static position.
func (c *Coordinator) thresholdMeasure(tc ThresholdConfig) func() (float64, error) {
	if tc.Selector != "" {
		if m, ok := c.bindings.(Measurer); ok {
			sel := tc.Selector
			return func() (float64, error) { return m.MeasureTop(sel) }
		}
		c.logger.Warn("layout: threshold selector ignored, bindings cannot measure",
			"id", tc.ID, "selector", tc.Selector)
	}
	if tc.ActivateVH > 0 {
		vh := tc.ActivateVH
		return func() (float64, error) { return vh * c.metric.StableHeight(), nil }
	}
	return nil
}

func (c *Coordinator) scrubMeasure(sc ScrubConfig) func() (float64, float64, error) {
	if sc.Selector != "" {
		if m, ok := c.bindings.(Measurer); ok {
			sel := sc.Selector
			span := sc.EndPx - sc.StartPx
			return func() (float64, float64, error) {
				top, err := m.MeasureTop(sel)
				if err != nil {
					return 0, 0, err
				}
				if span > 0 {
					return top, top + span, nil
				}
				// No explicit span: scrub across one stable viewport.
				return top, top + c.metric.StableHeight(), nil
			}
		}
		c.logger.Warn("layout: scrub selector ignored, bindings cannot measure",
			"id", sc.ID, "selector", sc.Selector)
	}
	if sc.StartVH > 0 || sc.EndVH > 0 {
		start, end := sc.StartVH, sc.EndVH
		return func() (float64, float64, error) {
			h := c.metric.StableHeight()
			return start * h, end * h, nil
		}
	}
	return nil
}

func (c *Coordinator) emit(ev event.Event) {
	ev.PageID = c.cfg.Page.ID
	ev.At = time.Now()
	// Dispatch queues for the router's drain goroutine; a slow sink never
	// holds up a scroll tick or a scheduler pass.
	c.sinkR.Dispatch(ev)
}

// nopBindings is the default when no page is attached.
type nopBindings struct{}

func (nopBindings) WriteSpacerHeight(string, float64) error { return nil }
func (nopBindings) WriteZIndex(string, int) error           { return nil }
func (nopBindings) PlayTransition(_ string, _ bool, done func()) {
	// No animation to run; re-arm immediately.
	done()
}
func (nopBindings) ApplyProgress(string, float64) {}
