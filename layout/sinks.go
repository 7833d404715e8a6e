package layout

import (
	"io"
	"log/slog"

	"github.com/hazyhaar/scrollsync/layout/event"
	"github.com/hazyhaar/scrollsync/layout/internal/sink"
)

// Sink is the output interface for coordinator events.
type Sink = sink.Sink

// EventFunc is called for each event by a callback sink.
type EventFunc = sink.EventFunc

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink, with no
// serialisation for consumers embedded in the same binary.
func NewCallbackSink(onEvent EventFunc) Sink {
	return sink.NewCallback(onEvent)
}

// Event is re-exported for sink consumers.
type Event = event.Event
