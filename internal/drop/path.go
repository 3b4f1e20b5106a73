package drop

import (
	"fmt"
	"path"
	"strings"
)

// CleanRelPath normalizes a client-supplied path to a '/'-separated path
// relative to the storage root. Backslashes are treated as separators.
// Empty paths, the root itself, absolute paths and paths climbing out of the
// root are rejected with ErrInvalidPath.
func CleanRelPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute path %q: %w", p, ErrInvalidPath)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("empty path: %w", ErrInvalidPath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes storage root: %w", p, ErrInvalidPath)
	}
	return cleaned, nil
}

// BaseName returns the last element of a client-supplied name, treating both
// '/' and '\' as separators. It returns "" for names with no usable element.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// TopSegment returns the first path segment of rel and whether rel has more
// than one segment.
func TopSegment(rel string) (string, bool) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	first, _, found := strings.Cut(rel, "/")
	return first, found
}
