package browser

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/scrollsync/layout"
)

// CollapsedClass is the class toggled on a threshold's target element.
const CollapsedClass = "is-collapsed"

// ProgressVar is the CSS custom property driven by scrub progress.
const ProgressVar = "--scroll-progress"

// transitionWait bounds how long a class toggle waits for transitionend
// before reporting the animation finished anyway.
const transitionWait = 2 * time.Second

// Driver translates coordinator bindings into DOM mutations on a live
// page. It resolves feature IDs to selectors via the layout config.
type Driver struct {
	page   *rod.Page
	logger *slog.Logger

	mu       sync.RWMutex
	spacers  map[string]string // region id -> spacer selector
	fixed    map[string]string // region id -> fixed selector
	toggles  map[string]string // trigger id -> transition target selector
	progress map[string]string // trigger id -> progress target selector
}

// NewDriver builds a Driver for a page from its feature config.
func NewDriver(page *rod.Page, cfg *layout.Config, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		page:     page,
		logger:   logger,
		spacers:  make(map[string]string),
		fixed:    make(map[string]string),
		toggles:  make(map[string]string),
		progress: make(map[string]string),
	}
	for _, p := range cfg.Features.Pinned {
		d.spacers[p.ID] = p.SpacerSelector
		d.fixed[p.ID] = p.FixedSelector
	}
	for _, t := range cfg.Features.Thresholds {
		sel := t.TargetSelector
		if sel == "" {
			sel = t.Selector
		}
		d.toggles[t.ID] = sel
	}
	for _, s := range cfg.Features.Scrubs {
		sel := s.TargetSelector
		if sel == "" {
			sel = s.Selector
		}
		d.progress[s.ID] = sel
	}
	return d
}

// WriteSpacerHeight sets the spacer element's height in CSS pixels.
func (d *Driver) WriteSpacerHeight(regionID string, px float64) error {
	d.mu.RLock()
	sel, ok := d.spacers[regionID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("browser: unknown region %q", regionID)
	}

	res, err := d.page.Eval(`(sel, px) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.style.height = px + 'px';
		return true;
	}`, sel, px)
	if err != nil {
		return fmt.Errorf("browser: write spacer %s: %w", regionID, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: spacer selector %q matched nothing", sel)
	}
	return nil
}

// WriteZIndex sets the fixed element's stacking order.
func (d *Driver) WriteZIndex(regionID string, z int) error {
	d.mu.RLock()
	sel, ok := d.fixed[regionID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("browser: unknown region %q", regionID)
	}

	res, err := d.page.Eval(`(sel, z) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.style.zIndex = String(z);
		return true;
	}`, sel, z)
	if err != nil {
		return fmt.Errorf("browser: write z-index %s: %w", regionID, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: fixed selector %q matched nothing", sel)
	}
	return nil
}

// PlayTransition toggles the collapsed class on the trigger's target and
// invokes done once the CSS transition ends (or the wait times out, so a
// missing transition rule cannot wedge the state machine).
func (d *Driver) PlayTransition(triggerID string, collapsed bool, done func()) {
	d.mu.RLock()
	sel, ok := d.toggles[triggerID]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("browser: transition for unknown trigger", "trigger", triggerID)
		done()
		return
	}

	go func() {
		defer done()
		_, err := d.page.Eval(`async (sel, cls, on, waitMs) => {
			const el = document.querySelector(sel);
			if (!el) return false;
			const ended = new Promise((resolve) => {
				const finish = () => { el.removeEventListener('transitionend', finish); resolve(); };
				el.addEventListener('transitionend', finish);
				setTimeout(finish, waitMs);
			});
			el.classList.toggle(cls, on);
			await ended;
			return true;
		}`, sel, CollapsedClass, collapsed, transitionWait.Milliseconds())
		if err != nil {
			d.logger.Warn("browser: transition failed",
				"trigger", triggerID, "collapsed", collapsed, "error", err)
		}
	}()
}

// ApplyProgress publishes scrub progress as a CSS custom property on the
// target element, for stylesheet-side effects to consume.
func (d *Driver) ApplyProgress(triggerID string, p float64) {
	d.mu.RLock()
	sel, ok := d.progress[triggerID]
	d.mu.RUnlock()
	if !ok {
		return
	}

	_, err := d.page.Eval(`(sel, prop, p) => {
		const el = document.querySelector(sel);
		if (el) el.style.setProperty(prop, String(p));
	}`, sel, ProgressVar, p)
	if err != nil {
		d.logger.Warn("browser: apply progress failed", "trigger", triggerID, "error", err)
	}
}

// MeasureTop returns the document-relative top of the first element
// matching the selector.
func (d *Driver) MeasureTop(selector string) (float64, error) {
	res, err := d.page.Eval(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		return el.getBoundingClientRect().top + window.scrollY;
	}`, selector)
	if err != nil {
		return 0, fmt.Errorf("browser: measure %q: %w", selector, err)
	}
	if res.Value.Nil() {
		return 0, fmt.Errorf("browser: selector %q matched nothing", selector)
	}
	return res.Value.Num(), nil
}
