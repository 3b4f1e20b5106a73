package drop

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound reports that a requested file or folder is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath reports a relative path that would escape the storage root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrIO wraps failures writing, deleting or walking the storage root.
	ErrIO = errors.New("storage i/o failure")
)

// ioError classifies err: missing paths become ErrNotFound, everything else ErrIO.
// Errors already carrying one of the sentinels are returned unchanged.
func ioError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPath) || errors.Is(err, ErrIO) {
		return err
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, name, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w: %v", op, name, ErrIO, err)
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
