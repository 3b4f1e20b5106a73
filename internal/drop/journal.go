package drop

import (
	"context"
	"time"
)

// EventKind names what happened to an entry.
type EventKind string

const (
	EventUpload  EventKind = "upload"
	EventDelete  EventKind = "delete"
	EventExpire  EventKind = "expire"
	EventArchive EventKind = "archive"
)

// Event is one journal row.
type Event struct {
	ID        string
	Kind      EventKind
	Name      string
	Detail    string
	CreatedAt time.Time
}

// Journal records what happened to the storage root. It is an audit trail
// only: nothing in the core reads it back to make decisions.
type Journal interface {
	// Record appends an event.
	Record(ctx context.Context, ev Event) error

	// Recent returns at most limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// Close releases the underlying store.
	Close() error
}

// NopJournal discards events. Used when the journal is disabled.
type NopJournal struct{}

func (NopJournal) Record(context.Context, Event) error          { return nil }
func (NopJournal) Recent(context.Context, int) ([]Event, error) { return nil, nil }
func (NopJournal) Close() error                                 { return nil }
