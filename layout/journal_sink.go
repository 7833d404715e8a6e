package layout

import (
	"context"

	"github.com/hazyhaar/scrollsync/journal"
	"github.com/hazyhaar/scrollsync/layout/event"
)

// NewJournalSink adapts a journal into an event sink. The journal's
// lifecycle stays with the caller; closing the sink does not close it.
func NewJournalSink(j *journal.Journal) Sink {
	return journalSink{j: j}
}

type journalSink struct {
	j *journal.Journal
}

func (s journalSink) Send(ctx context.Context, ev event.Event) error {
	s.j.Record(ctx, journal.Entry{
		PageID:    ev.PageID,
		EventType: string(ev.Type),
		TriggerID: ev.TriggerID,
		State:     ev.State,
		Reason:    ev.Reason,
		Value:     ev.Value,
	})
	return nil
}

func (s journalSink) Close() error { return nil }
