package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"drop-go/internal/drop"
)

// Service is the part of drop.DropService the HTTP layer calls.
type Service interface {
	Store(ctx context.Context, u drop.Upload) ([]string, error)
	Inventory(ctx context.Context) (*drop.Inventory, error)
	CheckUpdates(ctx context.Context, prior string) (drop.UpdateStatus, error)
	PackFolder(ctx context.Context, name string, w io.Writer) error
	DeleteFile(ctx context.Context, rel string) error
	DeleteFolder(ctx context.Context, name string) error
	OpenFile(ctx context.Context, rel string) (io.ReadCloser, drop.EntryInfo, error)
	TextPreview(ctx context.Context, rel string) string
}

var _ Service = (*drop.DropService)(nil)

// Options holds request limits.
type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server serves the drop box over HTTP.
type Server struct {
	router  *chi.Mux
	service Service
	logger  drop.Logger
	opts    Options
	server  *http.Server
}

// New creates a Server with its routes mounted.
func New(service Service, logger drop.Logger, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  &requestLog{logger: logger},
		NoColor: true,
	}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.RequestTimeout))

	s := &Server{
		router:  router,
		service: service,
		logger:  logger,
		opts:    opts,
		server: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 30 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	// Listing and change polling
	s.router.Get("/", s.handleInventory)
	s.router.Get("/api/inventory", s.handleInventory)
	s.router.Get("/check-updates", s.handleCheckUpdates)
	s.router.Get("/api/preview/*", s.handlePreview)

	// Uploads
	s.router.Post("/upload-files", s.handleUploadFiles)
	s.router.Post("/upload-folder", s.handleUploadFolder)
	s.router.Post("/upload-text", s.handleUploadText)

	// Downloads and deletes
	s.router.Get("/uploads/*", s.handleGetFile)
	s.router.Get("/download-folder/*", s.handleDownloadFolder)
	s.router.Post("/delete/*", s.handleDeleteFile)
	s.router.Post("/delete-folder/{name}", s.handleDeleteFolder)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves until Stop is called. A clean shutdown
// returns nil.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener. It returns immediately if Stop has
// already been called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLog routes chi's access log lines into the drop logger.
type requestLog struct {
	logger drop.Logger
}

func (l *requestLog) Print(v ...any) {
	l.logger.Info(fmt.Sprint(v...))
}
