package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/scrollsync/layout"
)

// DefaultPollInterval is the page sampling cadence. Scroll-linked
// effects tolerate one frame of lag; 50ms keeps CPU cost negligible.
const DefaultPollInterval = 50 * time.Millisecond

type sample struct {
	scrollY  float64
	width    float64
	height   float64
	portrait bool
}

// Pump polls the page and forwards scroll, resize, and orientation
// signals to the coordinator. An aspect-ratio flip is reported as an
// orientation change; any other dimension change as a resize, which
// lets the viewport metric suppress toolbar-driven height noise.
type Pump struct {
	page     *rod.Page
	coord    *layout.Coordinator
	interval time.Duration
	logger   *slog.Logger
}

// NewPump creates a signal pump. interval <= 0 uses DefaultPollInterval.
func NewPump(page *rod.Page, coord *layout.Coordinator, interval time.Duration, logger *slog.Logger) *Pump {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pump{page: page, coord: coord, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, feeding the coordinator. The first
// sample seeds the real viewport dimensions and scroll position.
func (p *Pump) Run(ctx context.Context) error {
	prev, err := p.read()
	if err != nil {
		return fmt.Errorf("browser: initial sample: %w", err)
	}
	p.coord.Resize(prev.width, prev.height)
	p.coord.Scroll(prev.scrollY)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cur, err := p.read()
		if err != nil {
			// Navigation and reloads surface as eval errors; keep polling.
			p.logger.Debug("browser: sample failed", "error", err)
			continue
		}

		if cur.width != prev.width || cur.height != prev.height {
			if cur.portrait != prev.portrait {
				p.coord.OrientationChange(cur.width, cur.height)
			} else {
				p.coord.Resize(cur.width, cur.height)
			}
		}
		if cur.scrollY != prev.scrollY {
			p.coord.Scroll(cur.scrollY)
		}
		prev = cur
	}
}

func (p *Pump) read() (sample, error) {
	res, err := p.page.Eval(`() => ({
		y: window.scrollY,
		w: window.innerWidth,
		h: window.innerHeight,
		portrait: window.innerHeight >= window.innerWidth,
	})`)
	if err != nil {
		return sample{}, err
	}
	v := res.Value
	return sample{
		scrollY:  v.Get("y").Num(),
		width:    v.Get("w").Num(),
		height:   v.Get("h").Num(),
		portrait: v.Get("portrait").Bool(),
	}, nil
}
