package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"drop-go/internal/drop"
)

// LogFileName is the log file written under log_dir.
const LogFileName = "drop.log"

// dropHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// The server logs from many goroutines, so each record is written in one call
// under mu.
type dropHandler struct {
	mu       *sync.Mutex
	w        io.Writer
	runID    string
	minLevel slog.Level
	attrs    []slog.Attr
}

func newDropHandler(w io.Writer, runID string, minLevel slog.Level) *dropHandler {
	return &dropHandler{mu: &sync.Mutex{}, w: w, runID: runID, minLevel: minLevel}
}

func (h *dropHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *dropHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	buf = fmt.Appendf(buf, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.runID, r.Message)

	// Write pre-set attrs.
	for _, a := range h.attrs {
		buf = fmt.Appendf(buf, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		buf = fmt.Appendf(buf, "\t%s=%v", a.Key, a.Value)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *dropHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dropHandler{
		mu:       h.mu,
		w:        h.w,
		runID:    h.runID,
		minLevel: h.minLevel,
		attrs:    append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *dropHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both logDir/drop.log and stderr.
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir string, runID string, minLevel slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	return slog.New(newDropHandler(w, runID, minLevel)), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the drop.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

var _ drop.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

// NewConsoleLogger returns a logger that writes to stderr only, for commands
// that run without a config such as watch.
func NewConsoleLogger(verbose bool) drop.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &slogAdapter{l: slog.New(newDropHandler(os.Stderr, "console", level))}
}
