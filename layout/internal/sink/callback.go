package sink

import (
	"context"

	"github.com/hazyhaar/scrollsync/layout/event"
)

// EventFunc is called for each event (in-process, zero serialisation).
type EventFunc func(ctx context.Context, ev event.Event) error

// Callback delivers events via Go function calls, for embedding the
// coordinator in the same binary as its consumer.
type Callback struct {
	onEvent EventFunc
}

// NewCallback creates a Callback sink. A nil handler drops everything.
func NewCallback(onEvent EventFunc) *Callback {
	return &Callback{onEvent: onEvent}
}

func (c *Callback) Send(ctx context.Context, ev event.Event) error {
	if c.onEvent != nil {
		return c.onEvent(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
