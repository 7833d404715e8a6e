// Package sink defines output backends for coordinator events.
package sink

import (
	"context"

	"github.com/hazyhaar/scrollsync/layout/event"
)

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-process callback, journal).
type Sink interface {
	Send(ctx context.Context, ev event.Event) error
	Close() error
}
