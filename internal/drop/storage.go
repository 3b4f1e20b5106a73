package drop

import (
	"io"
	"time"
)

// EntryInfo describes a file or directory beneath the storage root.
type EntryInfo struct {
	Name      string // base name
	IsDir     bool
	Size      int64
	CreatedAt time.Time // birth time where the filesystem records it, change time otherwise
	ModTime   time.Time
}

// Storage abstracts the storage root so the core can be exercised without
// touching the real filesystem. All paths are '/'-separated and relative to the
// root; implementations must reject paths that escape it (see CleanRelPath).
//
// Missing paths are reported with errors wrapping fs.ErrNotExist. Nothing here
// is locked: a listing may be stale by the time an entry is read.
type Storage interface {
	// List returns the immediate children of the root in listing order.
	// Children that vanish while being listed are omitted.
	List() ([]EntryInfo, error)

	// Stat returns fresh info for a relative path.
	Stat(rel string) (EntryInfo, error)

	// WalkFiles calls fn for every regular file beneath the directory rel.
	// The path passed to fn is relative to rel. Files that vanish mid-walk are
	// skipped; a vanished rel itself is reported as not-exist.
	WalkFiles(rel string, fn func(relPath string, info EntryInfo) error) error

	// Exists reports whether anything exists at rel.
	Exists(rel string) (bool, error)

	// MkdirAll creates the directory rel and any missing parents.
	MkdirAll(rel string) error

	// Create creates or truncates the file at rel, creating parent directories.
	Create(rel string) (io.WriteCloser, error)

	// Open opens the file at rel for reading.
	Open(rel string) (io.ReadCloser, error)

	// Remove deletes the single file at rel.
	Remove(rel string) error

	// RemoveAll deletes rel and everything beneath it.
	RemoveAll(rel string) error
}
