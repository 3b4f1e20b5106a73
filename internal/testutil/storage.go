package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"drop-go/internal/drop"
)

var _ drop.Storage = (*MockStorage)(nil)

type mockNode struct {
	isDir     bool
	data      []byte
	createdAt time.Time
	modTime   time.Time
}

// MockStorage is an in-memory storage root for testing. New entries take
// their creation time from the clock; SetCreatedAt overrides it.
// Top-level entries are listed in creation order. Safe for concurrent use.
type MockStorage struct {
	mu         sync.Mutex
	clock      drop.Clock
	nodes      map[string]*mockNode
	order      []string
	removeErrs map[string]error
	walkErrs   map[string]error

	// ReverseListing makes List return top-level entries newest first.
	ReverseListing bool

	// RootMissing makes List fail as if the root directory did not exist.
	RootMissing bool
}

// NewMockStorage creates an empty storage root.
func NewMockStorage(clock drop.Clock) *MockStorage {
	return &MockStorage{
		clock:      clock,
		nodes:      make(map[string]*mockNode),
		removeErrs: make(map[string]error),
		walkErrs:   make(map[string]error),
	}
}

// AddFile writes a file, creating parent folders.
func (m *MockStorage) AddFile(rel string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(parentOf(rel))
	m.putLocked(rel, &mockNode{data: append([]byte(nil), content...)})
}

// AddDir creates a folder and its parents.
func (m *MockStorage) AddDir(rel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(rel)
}

// SetCreatedAt overrides the creation time of an existing entry.
func (m *MockStorage) SetCreatedAt(rel string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[rel]; ok {
		n.createdAt = t
	}
}

// FailRemove makes Remove and RemoveAll of rel return err.
func (m *MockStorage) FailRemove(rel string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeErrs[rel] = err
}

// FailWalk makes WalkFiles of rel return err.
func (m *MockStorage) FailWalk(rel string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walkErrs[rel] = err
}

// Content returns the bytes of the file at rel.
func (m *MockStorage) Content(rel string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[rel]
	if !ok || n.isDir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Files returns the paths of every file, sorted.
func (m *MockStorage) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p, n := range m.nodes {
		if !n.isDir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MockStorage) List() ([]drop.EntryInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RootMissing {
		return nil, fmt.Errorf("listing root: %w", fs.ErrNotExist)
	}
	out := make([]drop.EntryInfo, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.infoLocked(name))
	}
	if m.ReverseListing {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (m *MockStorage) Stat(rel string) (drop.EntryInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[rel]; !ok {
		return drop.EntryInfo{}, notExist("stat", rel)
	}
	return m.infoLocked(rel), nil
}

func (m *MockStorage) WalkFiles(rel string, fn func(string, drop.EntryInfo) error) error {
	m.mu.Lock()
	if err := m.walkErrs[rel]; err != nil {
		m.mu.Unlock()
		return err
	}
	n, ok := m.nodes[rel]
	if !ok || !n.isDir {
		m.mu.Unlock()
		return notExist("walk", rel)
	}
	prefix := rel + "/"
	var paths []string
	infos := make(map[string]drop.EntryInfo)
	for p, n := range m.nodes {
		if !n.isDir && strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
			infos[p] = m.infoLocked(p)
		}
	}
	m.mu.Unlock()

	sort.Strings(paths)
	for _, p := range paths {
		if err := fn(strings.TrimPrefix(p, prefix), infos[p]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockStorage) Exists(rel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[rel]
	return ok, nil
}

func (m *MockStorage) MkdirAll(rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirAllLocked(rel)
}

func (m *MockStorage) Create(rel string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.mkdirAllLocked(parentOf(rel)); err != nil {
		return nil, err
	}
	if n, ok := m.nodes[rel]; ok && n.isDir {
		return nil, fmt.Errorf("create %s: is a directory", rel)
	}
	m.putLocked(rel, &mockNode{})
	return &mockWriter{storage: m, rel: rel}, nil
}

func (m *MockStorage) Open(rel string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[rel]
	if !ok {
		return nil, notExist("open", rel)
	}
	if n.isDir {
		return nil, fmt.Errorf("open %s: is a directory", rel)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), n.data...))), nil
}

func (m *MockStorage) Remove(rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.removeErrs[rel]; err != nil {
		return err
	}
	n, ok := m.nodes[rel]
	if !ok {
		return notExist("remove", rel)
	}
	if n.isDir && m.hasChildrenLocked(rel) {
		return fmt.Errorf("remove %s: directory not empty", rel)
	}
	m.deleteLocked(rel)
	return nil
}

func (m *MockStorage) RemoveAll(rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.removeErrs[rel]; err != nil {
		return err
	}
	if _, ok := m.nodes[rel]; !ok {
		return notExist("remove", rel)
	}
	prefix := rel + "/"
	for p := range m.nodes {
		if strings.HasPrefix(p, prefix) {
			delete(m.nodes, p)
		}
	}
	m.deleteLocked(rel)
	return nil
}

func (m *MockStorage) infoLocked(rel string) drop.EntryInfo {
	n := m.nodes[rel]
	return drop.EntryInfo{
		Name:      rel[strings.LastIndex(rel, "/")+1:],
		IsDir:     n.isDir,
		Size:      int64(len(n.data)),
		CreatedAt: n.createdAt,
		ModTime:   n.modTime,
	}
}

func (m *MockStorage) mkdirAllLocked(rel string) error {
	if rel == "" {
		return nil
	}
	parts := strings.Split(rel, "/")
	for i := range parts {
		p := strings.Join(parts[:i+1], "/")
		if n, ok := m.nodes[p]; ok {
			if !n.isDir {
				return fmt.Errorf("mkdir %s: not a directory", p)
			}
			continue
		}
		m.putLocked(p, &mockNode{isDir: true})
	}
	return nil
}

func (m *MockStorage) putLocked(rel string, n *mockNode) {
	now := m.clock.Now()
	if old, ok := m.nodes[rel]; ok {
		n.createdAt = old.createdAt
	} else {
		n.createdAt = now
		if !strings.Contains(rel, "/") {
			m.order = append(m.order, rel)
		}
	}
	n.modTime = now
	m.nodes[rel] = n
}

func (m *MockStorage) deleteLocked(rel string) {
	delete(m.nodes, rel)
	for i, name := range m.order {
		if name == rel {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *MockStorage) hasChildrenLocked(rel string) bool {
	prefix := rel + "/"
	for p := range m.nodes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

type mockWriter struct {
	storage *MockStorage
	rel     string
	buf     bytes.Buffer
}

func (w *mockWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *mockWriter) Close() error {
	w.storage.mu.Lock()
	defer w.storage.mu.Unlock()
	n, ok := w.storage.nodes[w.rel]
	if !ok {
		return notExist("close", w.rel)
	}
	n.data = append([]byte(nil), w.buf.Bytes()...)
	n.modTime = w.storage.clock.Now()
	return nil
}

func parentOf(rel string) string {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return ""
	}
	return rel[:i]
}

func notExist(op, rel string) error {
	return &fs.PathError{Op: op, Path: rel, Err: fs.ErrNotExist}
}
