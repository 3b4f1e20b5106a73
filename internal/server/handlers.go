package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"drop-go/internal/drop"
)

// multipartMemory is how much of a multipart body is held in memory before
// the rest spills to temporary files.
const multipartMemory = 32 << 20

type inventoryResponse struct {
	Hash    string           `json:"hash"`
	Buckets []bucketResponse `json:"buckets"`
}

type bucketResponse struct {
	Label   string           `json:"label"`
	Folders []folderResponse `json:"folders"`
	Files   []fileResponse   `json:"files"`
}

type folderResponse struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
	Count int      `json:"count"`
}

type fileResponse struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SizeLabel string `json:"size_label"`
	Preview   string `json:"preview,omitempty"` // .txt files only
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inv, err := s.service.Inventory(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hash, err := drop.Fingerprint(inv)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := inventoryResponse{Hash: hash, Buckets: make([]bucketResponse, 0, len(inv.Buckets))}
	for _, b := range inv.Buckets {
		br := bucketResponse{
			Label:   b.Label,
			Folders: make([]folderResponse, 0, len(b.Folders)),
			Files:   make([]fileResponse, 0, len(b.Files)),
		}
		for _, f := range b.Folders {
			br.Folders = append(br.Folders, folderResponse{Name: f.Name, Files: f.Files, Count: len(f.Files)})
		}
		for _, f := range b.Files {
			fr := fileResponse{Name: f.Name, Size: f.Size, SizeLabel: drop.FormatSize(f.Size)}
			if strings.EqualFold(path.Ext(f.Name), ".txt") {
				fr.Preview = s.service.TextPreview(ctx, f.Name)
			}
			br.Files = append(br.Files, fr)
		}
		resp.Buckets = append(resp.Buckets, br)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckUpdates(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.CheckUpdates(r.Context(), r.URL.Query().Get("hash"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    rel,
		"preview": s.service.TextPreview(r.Context(), rel),
	})
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	s.handleMultipartUpload(w, r, drop.ModeFiles)
}

func (s *Server) handleUploadFolder(w http.ResponseWriter, r *http.Request) {
	s.handleMultipartUpload(w, r, drop.ModeFolder)
}

func (s *Server) handleMultipartUpload(w http.ResponseWriter, r *http.Request, mode drop.Mode) {
	s.limitBody(w, r)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	u := drop.Upload{Mode: mode, Files: make([]drop.UploadFile, 0, len(headers))}
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opened = append(opened, f)
		u.Files = append(u.Files, drop.UploadFile{Name: rawFilename(fh), Body: f})
	}

	stored, err := s.service.Store(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("upload stored", "mode", mode.String(), "files", len(stored))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUploadText(w http.ResponseWriter, r *http.Request) {
	s.limitBody(w, r)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	u := drop.Upload{
		Mode:  drop.ModeText,
		Title: r.PostFormValue("title"),
		Text:  r.PostFormValue("text_content"),
	}
	if _, err := s.service.Store(r.Context(), u); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	rc, info, err := s.service.OpenFile(r.Context(), rel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Name, info.ModTime, rs)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(info.Name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("file download interrupted", "name", rel, "error", err)
	}
}

func (s *Server) handleDownloadFolder(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	aw := &attachmentWriter{w: w, filename: path.Base(name) + ".zip"}
	if err := s.service.PackFolder(r.Context(), name, aw); err != nil {
		if aw.started {
			s.logger.Warn("folder download interrupted", "name", name, "error", err)
			return
		}
		s.writeError(w, r, err)
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, chi.URLParam(r, "*"), s.service.DeleteFile)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, chi.URLParam(r, "name"), s.service.DeleteFolder)
}

// handleDelete redirects back to the listing even when the entry is already
// gone; only invalid paths and I/O failures surface as errors.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, name string, del func(context.Context, string) error) {
	if err := del(r.Context(), name); err != nil {
		if !drop.IsNotFound(err) {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info("delete of missing entry ignored", "name", name)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// limitBody caps the request body at the configured upload limit.
func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
}

// writeError maps core errors onto HTTP statuses. Unexpected errors are logged
// and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	var bad *requestError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("upload too large"))
	case errors.As(err, &bad):
		writeJSON(w, http.StatusBadRequest, errorBody(bad.Error()))
	case errors.Is(err, drop.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, drop.ErrInvalidPath):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// requestError marks a malformed request body.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "malformed request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// rawFilename returns the client-supplied filename including any directory
// components. multipart.FileHeader.Filename keeps the base name only, which
// would flatten folder uploads.
func rawFilename(fh *multipart.FileHeader) string {
	if cd := fh.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return fh.Filename
}

// attachmentWriter sets the zip download headers on first write, so a
// failure before any byte is produced can still be answered with an error.
type attachmentWriter struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.started {
		a.started = true
		h := a.w.Header()
		h.Set("Content-Type", "application/zip")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.filename}))
		a.w.WriteHeader(http.StatusOK)
	}
	return a.w.Write(p)
}
