package layout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/scrollsync/layout/event"
)

// fakeBindings records every call the coordinator makes against the page.
type fakeBindings struct {
	mu          sync.Mutex
	spacers     map[string][]float64
	zIndexes    map[string]int
	transitions []string // "id:collapsed" / "id:expanded"
	progress    map[string][]float64
	tops        map[string]float64 // selector -> measured top
}

func newFakeBindings() *fakeBindings {
	return &fakeBindings{
		spacers:  make(map[string][]float64),
		zIndexes: make(map[string]int),
		progress: make(map[string][]float64),
		tops:     make(map[string]float64),
	}
}

func (f *fakeBindings) WriteSpacerHeight(id string, px float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spacers[id] = append(f.spacers[id], px)
	return nil
}

func (f *fakeBindings) WriteZIndex(id string, z int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zIndexes[id] = z
	return nil
}

func (f *fakeBindings) PlayTransition(id string, collapsed bool, done func()) {
	f.mu.Lock()
	state := "expanded"
	if collapsed {
		state = "collapsed"
	}
	f.transitions = append(f.transitions, id+":"+state)
	f.mu.Unlock()
	done()
}

func (f *fakeBindings) ApplyProgress(id string, p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[id] = append(f.progress[id], p)
}

func (f *fakeBindings) MeasureTop(selector string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tops[selector], nil
}

func (f *fakeBindings) spacerWrites(id string) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.spacers[id]))
	copy(out, f.spacers[id])
	return out
}

func (f *fakeBindings) transitionLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.transitions))
	copy(out, f.transitions)
	return out
}

func testConfig() *Config {
	cfg := &Config{}
	cfg.Page.ID = "home"
	cfg.Engine.DebounceWindow = 20 * time.Millisecond
	cfg.Engine.InitialWidth = 390
	cfg.Engine.InitialHeight = 844
	cfg.Features.Pinned = []PinnedConfig{
		{ID: "hero", Mode: "viewport"},
		{ID: "footer", Mode: "fixed", HeightPx: 320},
	}
	cfg.Features.Thresholds = []ThresholdConfig{
		{ID: "header", ActivatePx: 300, HysteresisPx: 60},
	}
	cfg.Features.Scrubs = []ScrubConfig{
		{ID: "parallax", StartPx: 0, EndPx: 844},
	}
	cfg.applyDefaults()
	return cfg
}

func startCoordinator(t *testing.T, cfg *Config, b Bindings, sinks ...Sink) *Coordinator {
	t.Helper()
	c := New(cfg, nil, sinks...)
	if b != nil {
		c.SetBindings(b)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestStartSizesSpacersFromConfig(t *testing.T) {
	b := newFakeBindings()
	startCoordinator(t, testConfig(), b)

	if got := b.spacerWrites("hero"); len(got) != 1 || got[0] != 844 {
		t.Fatalf("hero spacer: %v", got)
	}
	if got := b.spacerWrites("footer"); len(got) != 1 || got[0] != 320 {
		t.Fatalf("footer spacer: %v", got)
	}
	b.mu.Lock()
	heroZ, footerZ := b.zIndexes["hero"], b.zIndexes["footer"]
	b.mu.Unlock()
	if footerZ <= heroZ {
		t.Fatalf("z-order: hero=%d footer=%d", heroZ, footerZ)
	}
}

func TestScrollDrivesThresholdAndScrub(t *testing.T) {
	b := newFakeBindings()
	c := startCoordinator(t, testConfig(), b)

	c.Scroll(422) // half the scrub range, past the header threshold

	if log := b.transitionLog(); len(log) != 1 || log[0] != "header:collapsed" {
		t.Fatalf("transitions: %v", log)
	}
	b.mu.Lock()
	prog := b.progress["parallax"]
	b.mu.Unlock()
	if len(prog) != 1 || prog[0] != 0.5 {
		t.Fatalf("parallax progress: %v", prog)
	}

	c.Scroll(100) // back above activate-hysteresis (240)
	if log := b.transitionLog(); len(log) != 2 || log[1] != "header:expanded" {
		t.Fatalf("transitions after scroll back: %v", log)
	}
}

func TestToolbarResizeLeavesSpacersAlone(t *testing.T) {
	b := newFakeBindings()
	c := startCoordinator(t, testConfig(), b)

	// Toolbar noise: three height-only resizes inside one window.
	c.Resize(390, 780)
	c.Resize(390, 844)
	c.Resize(390, 780)
	time.Sleep(80 * time.Millisecond) // let the debounced pass run

	if got := b.spacerWrites("hero"); len(got) != 1 {
		t.Fatalf("hero spacer rewritten from toolbar noise: %v", got)
	}

	// A real rotation resizes the spacer exactly once.
	c.OrientationChange(844, 390)
	time.Sleep(80 * time.Millisecond)

	if got := b.spacerWrites("hero"); len(got) != 2 || got[1] != 390 {
		t.Fatalf("hero spacer after rotation: %v", got)
	}
	if got := b.spacerWrites("footer"); len(got) != 1 {
		t.Fatalf("fixed footer spacer tracked the viewport: %v", got)
	}
}

func TestDeepLinkInitialState(t *testing.T) {
	b := newFakeBindings()
	cfg := testConfig()

	c := New(cfg, nil)
	c.SetBindings(b)
	// Restored scroll position arrives before Start (deep link).
	c.Scroll(5000)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	if log := b.transitionLog(); len(log) != 0 {
		t.Fatalf("deep-link init played an animation: %v", log)
	}
	in, ok := c.triggers.Inspect("header")
	if !ok || in.State != "collapsed" {
		t.Fatalf("header state after deep-link init: %+v", in)
	}
}

func TestSelectorThresholdRemeasuredOnRecompute(t *testing.T) {
	b := newFakeBindings()
	b.tops["#pricing"] = 600

	cfg := testConfig()
	cfg.Features.Thresholds = []ThresholdConfig{
		{ID: "nav", Selector: "#pricing", HysteresisPx: 50},
	}
	c := startCoordinator(t, cfg, b)

	c.Scroll(700) // past 600: collapse
	if log := b.transitionLog(); len(log) != 1 || log[0] != "nav:collapsed" {
		t.Fatalf("transitions: %v", log)
	}

	// Content above the target grew; the caller reports the mutation.
	b.mu.Lock()
	b.tops["#pricing"] = 1200
	b.mu.Unlock()
	c.RequestRecompute("mutation")
	time.Sleep(80 * time.Millisecond)

	// 700 <= 1200-50: the machine must have re-evaluated and expanded.
	if log := b.transitionLog(); len(log) != 2 || log[1] != "nav:expanded" {
		t.Fatalf("transitions after recompute: %v", log)
	}
}

func TestEventsReachSinks(t *testing.T) {
	var mu sync.Mutex
	var events []event.Event
	capture := NewCallbackSink(func(_ context.Context, ev event.Event) error {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		return nil
	})

	b := newFakeBindings()
	c := startCoordinator(t, testConfig(), b, capture)

	c.Scroll(422)
	c.Stop() // flushes the dispatch queue

	mu.Lock()
	defer mu.Unlock()
	var sawPass, sawTransition bool
	for _, ev := range events {
		if ev.PageID != "home" {
			t.Fatalf("event without page id: %+v", ev)
		}
		switch ev.Type {
		case event.TypePass:
			sawPass = true
		case event.TypeTransition:
			sawTransition = true
			if ev.TriggerID != "header" || ev.State != "collapsed" {
				t.Fatalf("bad transition event: %+v", ev)
			}
		}
	}
	if !sawPass || !sawTransition {
		t.Fatalf("missing events: pass=%v transition=%v (%d events)", sawPass, sawTransition, len(events))
	}
}

func TestSlowSinkDoesNotBlockScroll(t *testing.T) {
	release := make(chan struct{})
	slow := NewCallbackSink(func(_ context.Context, ev event.Event) error {
		<-release
		return nil
	})

	b := newFakeBindings()
	c := startCoordinator(t, testConfig(), b, slow)

	// The sink is stuck until released; scroll ticks must not care.
	done := make(chan struct{})
	go func() {
		c.Scroll(422)
		c.Scroll(100)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scroll tick waited on a sink")
	}
	close(release) // let Stop drain cleanly
}

func TestStopTearsDownEverything(t *testing.T) {
	b := newFakeBindings()
	cfg := testConfig()
	c := New(cfg, nil)
	c.SetBindings(b)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Stop()
	c.Stop() // idempotent

	if st := c.Stats(); st.Triggers.Triggers != 0 {
		t.Fatalf("triggers survive Stop: %d", st.Triggers.Triggers)
	}

	// Signals after Stop are inert for region/trigger effects.
	c.Scroll(5000)
	if log := b.transitionLog(); len(log) != 0 {
		t.Fatalf("transition after Stop: %v", log)
	}
}

func TestDoubleStartFails(t *testing.T) {
	c := New(testConfig(), nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
}
