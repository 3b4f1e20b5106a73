package drop

import (
	"context"
	"io"
)

// Vault stores archives of expired entries before the sweeper removes them.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// Put stores the archive under key. size is the number of bytes in r.
	// Storing the same key twice overwrites it.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the archive stored under key to w. A missing key yields ErrNotFound.
	Get(ctx context.Context, key string, w io.Writer) error

	// List returns the stored keys beginning with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
