package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"drop-go/internal/drop"
)

// OSStorage is the real filesystem implementation of drop.Storage, rooted at
// a single directory. Every relative path passes through drop.CleanRelPath
// before it touches the disk.
type OSStorage struct {
	root string
}

// Compile-time check that OSStorage implements drop.Storage.
var _ drop.Storage = (*OSStorage)(nil)

// NewOSStorage creates the root directory if needed and returns a storage
// confined to it.
func NewOSStorage(root string) (*OSStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &OSStorage{root: abs}, nil
}

// Root returns the absolute path of the storage root.
func (s *OSStorage) Root() string {
	return s.root
}

func (s *OSStorage) abs(rel string) (string, error) {
	clean, err := drop.CleanRelPath(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// List returns regular files and directories directly under the root, by name.
func (s *OSStorage) List() ([]drop.EntryInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	out := make([]drop.EntryInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, entryInfo(filepath.Join(s.root, e.Name()), info))
	}
	return out, nil
}

func (s *OSStorage) Stat(rel string) (drop.EntryInfo, error) {
	p, err := s.abs(rel)
	if err != nil {
		return drop.EntryInfo{}, err
	}
	info, err := os.Lstat(p)
	if err != nil {
		return drop.EntryInfo{}, err
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return drop.EntryInfo{}, &fs.PathError{Op: "stat", Path: rel, Err: fs.ErrNotExist}
	}
	return entryInfo(p, info), nil
}

// WalkFiles visits every regular file beneath rel in lexical order.
// Symlinks and other special files are not followed.
func (s *OSStorage) WalkFiles(rel string, fn func(string, drop.EntryInfo) error) error {
	base, err := s.abs(rel)
	if err != nil {
		return err
	}
	info, err := os.Lstat(base)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("walking %s: not a directory", rel)
	}

	return filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p != base {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		r, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(r), entryInfo(p, fi))
	})
}

func (s *OSStorage) Exists(rel string) (bool, error) {
	p, err := s.abs(rel)
	if err != nil {
		return false, err
	}
	if _, err := os.Lstat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *OSStorage) MkdirAll(rel string) error {
	p, err := s.abs(rel)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0755)
}

func (s *OSStorage) Create(rel string) (io.WriteCloser, error) {
	p, err := s.abs(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

func (s *OSStorage) Open(rel string) (io.ReadCloser, error) {
	p, err := s.abs(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *OSStorage) Remove(rel string) error {
	p, err := s.abs(rel)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// RemoveAll deletes rel recursively. Unlike os.RemoveAll, a missing rel is
// reported as not-exist.
func (s *OSStorage) RemoveAll(rel string) error {
	p, err := s.abs(rel)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(p); err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func entryInfo(path string, info fs.FileInfo) drop.EntryInfo {
	return drop.EntryInfo{
		Name:      info.Name(),
		IsDir:     info.IsDir(),
		Size:      info.Size(),
		CreatedAt: creationTime(path, info),
		ModTime:   info.ModTime(),
	}
}
