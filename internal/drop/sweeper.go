package drop

import (
	"context"
	"time"
)

const (
	// DefaultRetention is how long an entry lives before the sweeper deletes it.
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultSweepInterval is the pause between two sweeps.
	DefaultSweepInterval = time.Hour
)

// SweepResult lists what one pass did.
type SweepResult struct {
	Deleted []string
	Failed  []string
}

// Sweeper deletes top-level entries older than the retention window.
// It shares the storage root with request handlers without any locking.
type Sweeper struct {
	storage   Storage
	clock     Clock
	logger    Logger
	journal   Journal
	archiver  Archiver
	idgen     IDGenerator
	retention time.Duration
	interval  time.Duration
	after     func(time.Duration) <-chan time.Time
	observe   func(SweepResult)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.retention = d }
}

// WithInterval overrides DefaultSweepInterval.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

// WithArchiver archives every expired entry before deleting it. An entry
// whose archive fails is kept and retried on the next pass.
func WithArchiver(a Archiver) SweeperOption {
	return func(s *Sweeper) { s.archiver = a }
}

// WithJournal records every expiry.
func WithJournal(j Journal, idgen IDGenerator) SweeperOption {
	return func(s *Sweeper) {
		s.journal = j
		s.idgen = idgen
	}
}

// WithTimer replaces time.After as the source of wake-ups between passes.
func WithTimer(after func(time.Duration) <-chan time.Time) SweeperOption {
	return func(s *Sweeper) { s.after = after }
}

// WithObserver is called after every pass of Run.
func WithObserver(fn func(SweepResult)) SweeperOption {
	return func(s *Sweeper) { s.observe = fn }
}

// NewSweeper creates a Sweeper over storage.
func NewSweeper(storage Storage, clock Clock, logger Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		storage:   storage,
		clock:     clock,
		logger:    logger,
		journal:   NopJournal{},
		idgen:     UUIDGenerator{},
		retention: DefaultRetention,
		interval:  DefaultSweepInterval,
		after:     time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then once per interval until ctx is cancelled.
// Cancellation is checked before every pass and while waiting.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper started", "retention", s.retention.String(), "interval", s.interval.String())
	for {
		if ctx.Err() != nil {
			s.logger.Info("sweeper stopped")
			return nil
		}

		res := s.SweepOnce(ctx)
		if s.observe != nil {
			s.observe(res)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-s.after(s.interval):
		}
	}
}

// SweepOnce deletes every top-level entry created strictly before
// now minus the retention window. Failures are logged per entry and never
// abort the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) SweepResult {
	var res SweepResult

	children, err := s.storage.List()
	if err != nil {
		if !IsNotFound(err) {
			s.logger.Error("sweep listing failed", "error", err)
		}
		return res
	}

	now := s.clock.Now()
	cutoff := now.Add(-s.retention)
	for _, child := range children {
		if ctx.Err() != nil {
			break
		}
		if !child.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.expire(ctx, child, now); err != nil {
			if IsNotFound(err) {
				continue
			}
			s.logger.Error("failed to delete expired entry", "name", child.Name, "error", err)
			res.Failed = append(res.Failed, child.Name)
			continue
		}
		res.Deleted = append(res.Deleted, child.Name)
	}

	if len(res.Deleted) > 0 || len(res.Failed) > 0 {
		s.logger.Info("sweep complete", "deleted", len(res.Deleted), "failed", len(res.Failed))
	}
	return res
}

func (s *Sweeper) expire(ctx context.Context, child EntryInfo, now time.Time) error {
	detail := "age " + now.Sub(child.CreatedAt).Truncate(time.Hour).String()

	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, child, now)
		if err != nil {
			return err
		}
		s.record(ctx, EventArchive, child.Name, key, now)
	}

	var err error
	if child.IsDir {
		err = s.storage.RemoveAll(child.Name)
	} else {
		err = s.storage.Remove(child.Name)
	}
	if err != nil {
		return ioError("deleting", child.Name, err)
	}

	kind := "file"
	if child.IsDir {
		kind = "folder"
	}
	s.logger.Info("deleted expired entry", "name", child.Name, "kind", kind)
	s.record(ctx, EventExpire, child.Name, detail, now)
	return nil
}

func (s *Sweeper) record(ctx context.Context, kind EventKind, name, detail string, now time.Time) {
	ev := Event{ID: s.idgen.New(), Kind: kind, Name: name, Detail: detail, CreatedAt: now}
	if err := s.journal.Record(ctx, ev); err != nil {
		s.logger.Warn("journal write failed", "kind", string(kind), "name", name, "error", err)
	}
}
