package drop

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"
)

// DropService is the orchestration layer the HTTP server and CLI use. It ties
// the namer, inventory builder, fingerprint and archive packer to one storage
// root and records what it does in the journal.
type DropService struct {
	storage Storage
	namer   *Namer
	journal Journal
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewDropService creates a new DropService. journal may be nil.
func NewDropService(storage Storage, journal Journal, logger Logger, clock Clock, idgen IDGenerator) *DropService {
	if journal == nil {
		journal = NopJournal{}
	}
	return &DropService{
		storage: storage,
		namer:   NewNamer(storage, clock),
		journal: journal,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Place computes destinations for u without writing anything.
func (s *DropService) Place(u Upload) (*Plan, error) {
	return s.namer.Place(u)
}

// Store places u and writes every file. It returns the stored paths relative
// to the storage root. An empty upload stores nothing and is not an error.
func (s *DropService) Store(ctx context.Context, u Upload) ([]string, error) {
	plan, err := s.namer.Place(u)
	if err != nil {
		return nil, err
	}

	if plan.Container != "" {
		if err := s.storage.MkdirAll(plan.Container); err != nil {
			return nil, ioError("creating", plan.Container, err)
		}
	}

	stored := make([]string, 0, len(plan.Files))
	for _, p := range plan.Files {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if err := s.write(p); err != nil {
			return stored, err
		}
		stored = append(stored, p.RelPath)
	}

	if len(stored) > 0 {
		name := plan.Container
		if name == "" {
			name, _ = TopSegment(stored[0])
		}
		s.logger.Info("upload stored", "mode", u.Mode.String(), "name", name, "files", len(stored))
		s.record(ctx, EventUpload, name, fmt.Sprintf("%s, %d file(s)", u.Mode, len(stored)))
	}
	return stored, nil
}

func (s *DropService) write(p Placement) error {
	w, err := s.storage.Create(p.RelPath)
	if err != nil {
		return ioError("creating", p.RelPath, err)
	}
	if _, err := io.Copy(w, p.Body); err != nil {
		w.Close()
		return ioError("writing", p.RelPath, err)
	}
	if err := w.Close(); err != nil {
		return ioError("closing", p.RelPath, err)
	}
	return nil
}

// Inventory scans the storage root as of the service clock.
func (s *DropService) Inventory(ctx context.Context) (*Inventory, error) {
	return BuildInventory(s.storage, s.clock.Now(), s.logger)
}

// CheckUpdates rescans the storage root and compares its fingerprint to prior.
func (s *DropService) CheckUpdates(ctx context.Context, prior string) (UpdateStatus, error) {
	inv, err := s.Inventory(ctx)
	if err != nil {
		return UpdateStatus{}, err
	}
	current, err := Fingerprint(inv)
	if err != nil {
		return UpdateStatus{}, fmt.Errorf("computing fingerprint: %w", err)
	}
	return CompareFingerprint(prior, current), nil
}

// PackFolder streams the folder name as a zip archive into w.
func (s *DropService) PackFolder(ctx context.Context, name string, w io.Writer) error {
	return PackFolder(s.storage, name, w)
}

// DeleteEntry removes the top-level file or folder name.
func (s *DropService) DeleteEntry(ctx context.Context, name string) error {
	return s.delete(ctx, name, func(EntryInfo) bool { return true })
}

// DeleteFile removes the file at rel. Directories are reported as not found.
func (s *DropService) DeleteFile(ctx context.Context, rel string) error {
	return s.delete(ctx, rel, func(info EntryInfo) bool { return !info.IsDir })
}

// DeleteFolder removes the folder name and everything under it. Plain files are
// reported as not found.
func (s *DropService) DeleteFolder(ctx context.Context, name string) error {
	return s.delete(ctx, name, func(info EntryInfo) bool { return info.IsDir })
}

func (s *DropService) delete(ctx context.Context, name string, accept func(EntryInfo) bool) error {
	rel, err := CleanRelPath(name)
	if err != nil {
		return err
	}

	info, err := s.storage.Stat(rel)
	if err != nil {
		return ioError("deleting", rel, err)
	}
	if !accept(info) {
		return fmt.Errorf("deleting %s: %w", rel, ErrNotFound)
	}

	if info.IsDir {
		err = s.storage.RemoveAll(rel)
	} else {
		err = s.storage.Remove(rel)
	}
	if err != nil {
		return ioError("deleting", rel, err)
	}

	s.logger.Info("entry deleted", "name", rel)
	s.record(ctx, EventDelete, rel, "")
	return nil
}

// OpenFile opens the file at rel for reading. Directories are reported as not
// found. The caller must close the returned reader.
func (s *DropService) OpenFile(ctx context.Context, rel string) (io.ReadCloser, EntryInfo, error) {
	clean, err := CleanRelPath(rel)
	if err != nil {
		return nil, EntryInfo{}, err
	}
	info, err := s.storage.Stat(clean)
	if err != nil {
		return nil, EntryInfo{}, ioError("opening", clean, err)
	}
	if info.IsDir {
		return nil, EntryInfo{}, fmt.Errorf("opening %s: is a folder: %w", clean, ErrNotFound)
	}
	rc, err := s.storage.Open(clean)
	if err != nil {
		return nil, EntryInfo{}, ioError("opening", clean, err)
	}
	return rc, info, nil
}

// TextPreview returns the content of a .txt file. Any failure, including
// content that is not UTF-8, yields PreviewUnavailable.
func (s *DropService) TextPreview(ctx context.Context, rel string) string {
	if !strings.EqualFold(path.Ext(rel), textExt) {
		return PreviewUnavailable
	}
	rc, _, err := s.OpenFile(ctx, rel)
	if err != nil {
		s.logger.Debug("preview unavailable", "name", rel, "error", err)
		return PreviewUnavailable
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil || !utf8.Valid(data) {
		return PreviewUnavailable
	}
	return string(data)
}

// History returns at most limit journal events, newest first.
func (s *DropService) History(ctx context.Context, limit int) ([]Event, error) {
	events, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return events, nil
}

// record appends to the journal. Journal failures never fail the operation.
func (s *DropService) record(ctx context.Context, kind EventKind, name, detail string) {
	ev := Event{
		ID:        s.idgen.New(),
		Kind:      kind,
		Name:      name,
		Detail:    detail,
		CreatedAt: s.clock.Now(),
	}
	if err := s.journal.Record(ctx, ev); err != nil {
		s.logger.Warn("journal write failed", "kind", string(kind), "name", name, "error", err)
	}
}
