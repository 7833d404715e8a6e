package trigger

import (
	"log/slog"
	"sync"
)

// State is the chrome state driven by a threshold trigger.
type State int

const (
	Expanded  State = iota // chrome at full size
	Collapsed              // chrome shrunk past the activation position
)

func (s State) String() string {
	if s == Collapsed {
		return "collapsed"
	}
	return "expanded"
}

// Machine is a two-state hysteresis machine. Scrolling past the activation
// position collapses; scrolling back above activation minus the hysteresis
// band expands. The gap between the two thresholds absorbs momentum-scroll
// jitter and sub-pixel position reporting, so a few pixels of oscillation
// around the boundary can never flicker the chrome.
//
// Thread-safe: all transitions use a mutex. Callbacks fire outside the lock.
type Machine struct {
	mu          sync.Mutex
	id          string
	state       State
	activatePos float64
	hysteresis  float64

	// inFlight is set while the owning feature's animation runs. The state
	// flips on transition, so repeat events toward the same state never
	// reach here; only a state-reversing event fires while inFlight.
	inFlight bool

	onEnter     func()
	onLeaveBack func()

	lastPos float64
	hasPos  bool

	logger *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMachineLogger sets a custom logger.
func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) { m.logger = l }
}

// NewMachine creates a threshold machine. onEnter fires on the transition
// to Collapsed, onLeaveBack on the transition back to Expanded. A negative
// hysteresis is clamped to zero.
func NewMachine(id string, activatePos, hysteresisPx float64, onEnter, onLeaveBack func(), opts ...MachineOption) *Machine {
	if hysteresisPx < 0 {
		hysteresisPx = 0
	}
	m := &Machine{
		id:          id,
		state:       Expanded,
		activatePos: activatePos,
		hysteresis:  hysteresisPx,
		onEnter:     onEnter,
		onLeaveBack: onLeaveBack,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Init computes the initial state from the current scroll position without
// firing any callback. A page restored mid-scroll starts directly in the
// correct state instead of playing a collapse animation on load.
func (m *Machine) Init(pos float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked(pos)
}

// Reinit installs a freshly measured activation position and recomputes
// the state from pos, firing no callback. Used when a trigger whose
// target was unmeasurable at registration comes live: the position must
// land before the state is computed, or the machine would evaluate
// against the stale registration-time position and play a phantom
// transition.
func (m *Machine) Reinit(activatePos, pos float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activatePos = activatePos
	m.initLocked(pos)
}

func (m *Machine) initLocked(pos float64) {
	m.lastPos = pos
	m.hasPos = true
	if pos >= m.activatePos {
		m.state = Collapsed
	} else {
		m.state = Expanded
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActivatePos returns the current activation position.
func (m *Machine) ActivatePos() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activatePos
}

// Hysteresis returns the hysteresis band width in pixels.
func (m *Machine) Hysteresis() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hysteresis
}

// Observe evaluates a scroll position against the thresholds, firing at
// most one transition callback.
func (m *Machine) Observe(pos float64) {
	m.mu.Lock()
	m.lastPos = pos
	m.hasPos = true
	fire := m.evaluateLocked()
	m.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// SetActivatePos moves the activation position (a recomputation pass has
// re-measured trigger geometry) and re-evaluates the last known scroll
// position against it. A transition fires only if the position is now on
// the wrong side of the moved threshold, using the same hysteresis band.
func (m *Machine) SetActivatePos(pos float64) {
	m.mu.Lock()
	m.activatePos = pos
	var fire func()
	if m.hasPos {
		fire = m.evaluateLocked()
	}
	m.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// AnimationDone reports that the owning feature's transition animation
// finished, re-arming the machine for the next same-direction transition.
func (m *Machine) AnimationDone() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

// InFlight reports whether a transition animation is running.
func (m *Machine) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

func (m *Machine) evaluateLocked() func() {
	switch m.state {
	case Expanded:
		if m.lastPos >= m.activatePos {
			return m.transitionLocked(Collapsed)
		}
	case Collapsed:
		if m.lastPos <= m.activatePos-m.hysteresis {
			return m.transitionLocked(Expanded)
		}
	}
	return nil
}

func (m *Machine) transitionLocked(next State) func() {
	interrupted := m.inFlight
	m.state = next
	m.inFlight = true

	m.logger.Debug("trigger: threshold transition",
		"id", m.id, "state", next.String(), "pos", m.lastPos,
		"activate", m.activatePos, "interrupted", interrupted)

	if next == Collapsed {
		return m.onEnter
	}
	return m.onLeaveBack
}
