package pinned

import (
	"errors"
	"testing"

	"github.com/hazyhaar/scrollsync/viewport"
)

type spacerRecorder struct {
	writes []float64
	fail   bool
}

func (p *spacerRecorder) write(h float64) error {
	if p.fail {
		return errors.New("element detached")
	}
	p.writes = append(p.writes, h)
	return nil
}

func TestSpacerSizedFromStableHeightOnly(t *testing.T) {
	m := viewport.New(390, 844)
	c := NewController(m)

	hero := &spacerRecorder{}
	if _, err := c.Register(Region{
		ID: "hero", Mode: ViewportLinked, WriteSpacer: hero.write,
	}); err != nil {
		t.Fatal(err)
	}

	c.Recompute("init")
	if len(hero.writes) != 1 || hero.writes[0] != 844 {
		t.Fatalf("initial spacer write: %v", hero.writes)
	}

	// Toolbar noise: raw height moves, stable height does not. The next
	// pass must leave the spacer alone.
	m.Resize(390, 780)
	c.Recompute("resize")
	if len(hero.writes) != 1 {
		t.Fatalf("spacer rewritten from toolbar noise: %v", hero.writes)
	}

	// Genuine rotation commits a new stable height.
	m.OrientationChange(844, 390)
	c.Recompute("orientation")
	if len(hero.writes) != 2 || hero.writes[1] != 390 {
		t.Fatalf("spacer after rotation: %v", hero.writes)
	}
}

func TestSpacerIdempotentBetweenPasses(t *testing.T) {
	m := viewport.New(390, 844)
	c := NewController(m)

	hero := &spacerRecorder{}
	if _, err := c.Register(Region{
		ID: "hero", Mode: ViewportLinked, Multiplier: 1.5, WriteSpacer: hero.write,
	}); err != nil {
		t.Fatal(err)
	}

	// Passes without geometry changes in between must not rewrite.
	c.Recompute("init")
	c.Recompute("mutation")
	c.Recompute("mutation")

	if len(hero.writes) != 1 {
		t.Fatalf("expected single write, got %v", hero.writes)
	}
	if hero.writes[0] != 844*1.5 {
		t.Fatalf("multiplier not applied: %v", hero.writes[0])
	}
}

func TestRegionsAreIndependent(t *testing.T) {
	m := viewport.New(390, 844)
	c := NewController(m)

	hero := &spacerRecorder{}
	footer := &spacerRecorder{}
	if _, err := c.Register(Region{ID: "hero", Mode: ViewportLinked, WriteSpacer: hero.write}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Register(Region{ID: "footer", Mode: ViewportLinked, Multiplier: 0.5, WriteSpacer: footer.write}); err != nil {
		t.Fatal(err)
	}

	c.Recompute("init")

	// The footer's element detaches; its write fails. The hero must be
	// unaffected, and the footer retried on the following pass.
	footer.fail = true
	m.OrientationChange(844, 390)
	c.Recompute("orientation")

	if len(hero.writes) != 2 || hero.writes[1] != 390 {
		t.Fatalf("hero writes disturbed by footer failure: %v", hero.writes)
	}
	if in, _ := c.Inspect("footer"); in.WriteFailures != 1 {
		t.Fatalf("footer failures: got %d, want 1", in.WriteFailures)
	}

	footer.fail = false
	c.Recompute("retry")
	if got := footer.writes[len(footer.writes)-1]; got != 195 {
		t.Fatalf("footer retry height: got %v, want 195", got)
	}
}

func TestFixedModeIgnoresViewport(t *testing.T) {
	m := viewport.New(390, 844)
	c := NewController(m)

	footer := &spacerRecorder{}
	if _, err := c.Register(Region{ID: "footer", Mode: Fixed, HeightPx: 320, WriteSpacer: footer.write}); err != nil {
		t.Fatal(err)
	}

	c.Recompute("init")
	m.OrientationChange(844, 390)
	c.Recompute("orientation")

	if len(footer.writes) != 1 || footer.writes[0] != 320 {
		t.Fatalf("fixed spacer tracked the viewport: %v", footer.writes)
	}
}

func TestZOrderFollowsRegistration(t *testing.T) {
	m := viewport.New(390, 844)
	c := NewController(m)

	var heroZ, footerZ int
	if _, err := c.Register(Region{
		ID: "hero", Mode: ViewportLinked,
		WriteSpacer: func(float64) error { return nil },
		WriteZIndex: func(z int) error { heroZ = z; return nil },
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Register(Region{
		ID: "footer", Mode: Fixed, HeightPx: 320,
		WriteSpacer: func(float64) error { return nil },
		WriteZIndex: func(z int) error { footerZ = z; return nil },
	}); err != nil {
		t.Fatal(err)
	}

	if footerZ <= heroZ {
		t.Fatalf("later region not stacked above: hero=%d footer=%d", heroZ, footerZ)
	}
}

func TestRegisterValidation(t *testing.T) {
	c := NewController(viewport.New(390, 844))

	if _, err := c.Register(Region{ID: "x"}); !errors.Is(err, ErrNilWriter) {
		t.Fatalf("nil writer: got %v", err)
	}

	ok := Region{ID: "x", Mode: Fixed, HeightPx: 10, WriteSpacer: func(float64) error { return nil }}
	if _, err := c.Register(ok); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Register(ok); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate: got %v", err)
	}
}

func TestUnregister(t *testing.T) {
	m := viewport.New(390, 844)
	c := NewController(m)

	hero := &spacerRecorder{}
	h, err := c.Register(Region{ID: "hero", Mode: ViewportLinked, WriteSpacer: hero.write})
	if err != nil {
		t.Fatal(err)
	}

	h.Unregister()
	h.Unregister() // no-op
	c.Recompute("init")

	if len(hero.writes) != 0 {
		t.Fatalf("unregistered region written: %v", hero.writes)
	}
	var n int
	for range c.Regions() {
		n++
	}
	if n != 0 {
		t.Fatalf("region still listed: %d", n)
	}
}
