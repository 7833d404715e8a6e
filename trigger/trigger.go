// Package trigger is the single dispatch point for scroll-linked effects.
// Every feature on a page (hero pin, header collapse, parallax scrub,
// footer reveal) registers its trigger here instead of attaching its own
// scroll listener, so evaluation order is deterministic and one feature's
// bug cannot race another's listener.
//
// Two trigger kinds exist. A scrub trigger maps a scroll range onto a
// continuous [0,1] progress value. A threshold trigger toggles a two-state
// Machine with a hysteresis band.
package trigger

import "errors"

var (
	// ErrDuplicateID is returned when a trigger id is already registered.
	ErrDuplicateID = errors.New("trigger: duplicate trigger id")
	// ErrNilCallback is returned when a trigger has no callback to drive.
	ErrNilCallback = errors.New("trigger: nil callback")
	// ErrInvalidRange is returned when a scrub range is empty or inverted.
	ErrInvalidRange = errors.New("trigger: range end must be greater than range start")
)

// Unsubscribe removes a trigger from the registry. Safe to call more
// than once.
type Unsubscribe func()

// Scrub binds a scroll range to a continuous progress callback.
type Scrub struct {
	// ID identifies the trigger in logs and admin surfaces. Required,
	// unique per registry.
	ID string

	// RangeStart and RangeEnd bound the scrub in scroll coordinates.
	// Ignored when Measure is set.
	RangeStart float64
	RangeEnd   float64

	// Measure re-resolves the range during a recomputation pass. Optional;
	// when nil the static range above is used for the trigger's lifetime.
	Measure func() (start, end float64, err error)

	// OnProgress receives clamp((pos-start)/(end-start), 0, 1). Invoked
	// only when the value changed since the previous tick. Required.
	OnProgress func(p float64)
}

// Threshold binds an activation position to a two-state machine.
type Threshold struct {
	// ID identifies the trigger. Required, unique per registry.
	ID string

	// ActivatePos is the scroll coordinate that collapses on the way down.
	// Ignored when Measure is set.
	ActivatePos float64

	// HysteresisPx is the band between the collapse and expand thresholds.
	// The expand threshold sits at ActivatePos - HysteresisPx.
	HysteresisPx float64

	// Measure re-resolves the activation position during a recomputation
	// pass. Optional.
	Measure func() (pos float64, err error)

	// OnEnter fires on the transition to Collapsed, OnLeaveBack on the
	// transition back to Expanded. Both required.
	OnEnter     func()
	OnLeaveBack func()
}

// Info describes a registered trigger as seen at a point in time.
type Info struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"` // "scrub" | "threshold"
	RangeStart   float64 `json:"range_start,omitempty"`
	RangeEnd     float64 `json:"range_end,omitempty"`
	LastProgress float64 `json:"last_progress,omitempty"`
	ActivatePos  float64 `json:"activate_pos,omitempty"`
	HysteresisPx float64 `json:"hysteresis_px,omitempty"`
	State        string  `json:"state,omitempty"`
	Inert        bool    `json:"inert,omitempty"`
	Degraded     bool    `json:"degraded,omitempty"`
}
