package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"drop-go/internal/database/migrations"
	"drop-go/internal/drop"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements drop.Journal using SQLite.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

var _ drop.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens the journal at path, applying pending migrations.
// path can be a file path or ":memory:" for an in-memory journal.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking journal schema: %w", err)
	}

	return &SQLiteJournal{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// A single connection is used so ":memory:" databases are shared by every
// query and concurrent writers queue instead of failing with SQLITE_BUSY.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Record appends an event.
func (j *SQLiteJournal) Record(ctx context.Context, ev drop.Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, kind, name, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.Name, ev.Detail, ev.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording %s event for %s: %w", ev.Kind, ev.Name, err)
	}
	return nil
}

// Recent returns at most limit events, newest first. Events recorded within
// the same instant keep their insertion order.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]drop.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, name, detail, created_at FROM events ORDER BY created_at DESC, seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []drop.Event
	for rows.Next() {
		var (
			ev      drop.Event
			kind    string
			created int64
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.Name, &ev.Detail, &created); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Kind = drop.EventKind(kind)
		ev.CreatedAt = time.Unix(0, created).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return events, nil
}

// Close closes the underlying connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
