//go:build !linux

package fs

import (
	"io/fs"
	"time"
)

// creationTime falls back to the modification time where birth time is not
// exposed through a portable call.
func creationTime(_ string, info fs.FileInfo) time.Time {
	return info.ModTime()
}
