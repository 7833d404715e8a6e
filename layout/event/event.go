// Package event defines the coordinator's emitted event records. Sinks,
// the journal, and admin surfaces all consume this shape.
package event

import "time"

// Type discriminates event records.
type Type string

const (
	// TypeTransition is a threshold state change (collapse/expand).
	TypeTransition Type = "transition"
	// TypePass is a completed recomputation pass.
	TypePass Type = "pass"
	// TypeStableHeight is a stable viewport-height commit.
	TypeStableHeight Type = "stable_height"
	// TypeScrub is a scrub reaching an endpoint of its range (0 or 1).
	TypeScrub Type = "scrub"
)

// Event is a single coordinator occurrence.
type Event struct {
	Type      Type      `json:"type"`
	PageID    string    `json:"page_id,omitempty"`
	TriggerID string    `json:"trigger_id,omitempty"`
	State     string    `json:"state,omitempty"`  // transition: "collapsed" | "expanded"
	Reason    string    `json:"reason,omitempty"` // pass: joined request reasons
	Value     float64   `json:"value,omitempty"`  // scrub progress or committed height
	At        time.Time `json:"at"`
}
