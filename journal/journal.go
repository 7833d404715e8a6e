// Package journal records a SQLite timeline of coordinator events
// (threshold transitions, recomputation passes, stable-height commits)
// for post-hoc debugging of scroll bugs. The engine never reads the
// journal back; it is diagnostics only, and a failing journal never
// blocks the coordinator.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS coordinator_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id    TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	trigger_id TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	value      REAL NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coordinator_events_created
	ON coordinator_events(created_at);
CREATE INDEX IF NOT EXISTS idx_coordinator_events_page
	ON coordinator_events(page_id, event_type);
`

// Entry is one journal row.
type Entry struct {
	ID        int64   `json:"id"`
	PageID    string  `json:"page_id,omitempty"`
	EventType string  `json:"event_type"`
	TriggerID string  `json:"trigger_id,omitempty"`
	State     string  `json:"state,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Value     float64 `json:"value,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// Journal writes and queries the event timeline.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// WithClock sets a custom clock function (for testing).
func WithClock(fn func() time.Time) Option {
	return func(j *Journal) { j.now = fn }
}

// Open opens (creating if necessary) a journal database at path and
// applies the schema. The caller must import a driver registering
// "sqlite" (modernc.org/sqlite).
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an existing database handle and applies the schema.
func New(db *sql.DB, opts ...Option) (*Journal, error) {
	j := &Journal{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(j)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return j, nil
}

// Record inserts an entry. Errors are logged, never propagated; a
// failing diagnostics store must not disturb the coordinator.
func (j *Journal) Record(ctx context.Context, e Entry) {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO coordinator_events (
			page_id, event_type, trigger_id, state, reason, value, created_at
		) VALUES (?,?,?,?,?,?,?)`,
		e.PageID, e.EventType, e.TriggerID, e.State, e.Reason, e.Value,
		j.now().UnixMilli())
	if err != nil {
		j.logger.Warn("journal: record failed", "event_type", e.EventType, "error", err)
	}
}

// Tail returns the n most recent entries, newest first.
func (j *Journal) Tail(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, page_id, event_type, trigger_id, state, reason, value, created_at
		FROM coordinator_events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: tail: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PageID, &e.EventType, &e.TriggerID,
			&e.State, &e.Reason, &e.Value, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sweep deletes entries older than the retention window and returns the
// number removed.
func (j *Journal) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := j.now().Add(-retention).UnixMilli()
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM coordinator_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		j.logger.Info("journal: retention sweep", "removed", n)
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }
