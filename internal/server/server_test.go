package server_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"drop-go/internal/drop"
	"drop-go/internal/server"
	"drop-go/internal/testutil"
)

type inventoryBody struct {
	Hash    string `json:"hash"`
	Buckets []struct {
		Label   string `json:"label"`
		Folders []struct {
			Name  string   `json:"name"`
			Files []string `json:"files"`
			Count int      `json:"count"`
		} `json:"folders"`
		Files []struct {
			Name      string `json:"name"`
			Size      int64  `json:"size"`
			SizeLabel string `json:"size_label"`
			Preview   string `json:"preview"`
		} `json:"files"`
	} `json:"buckets"`
}

func newTestServer(t *testing.T, opts server.Options) (http.Handler, *drop.DropService, *testutil.MockStorage) {
	t.Helper()
	clock := testutil.FixedClock()
	storage := testutil.NewMockStorage(clock)
	svc := drop.NewDropService(storage, drop.NopJournal{}, drop.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	return server.New(svc, drop.NewNopLogger(), opts).Handler(), svc, storage
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// multipartBody encodes names as "files" parts whose content is "content of <name>".
func multipartBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		io.WriteString(part, "content of "+name)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestServer_Health(t *testing.T) {
	h, _, _ := newTestServer(t, server.Options{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"healthy"}` {
		t.Errorf("body = %s", got)
	}
}

func TestServer_Inventory(t *testing.T) {
	h, svc, storage := newTestServer(t, server.Options{})
	storage.AddFile("note.txt", []byte("hi"))
	storage.AddFile("proj/a.txt", []byte("a"))
	storage.AddFile("proj/sub/b.txt", []byte("b"))

	for _, target := range []string{"/", "/api/inventory"} {
		t.Run(target, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var body inventoryBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}

			inv, err := svc.Inventory(context.Background())
			if err != nil {
				t.Fatalf("Inventory() error = %v", err)
			}
			want, _ := drop.Fingerprint(inv)
			if body.Hash != want {
				t.Errorf("hash = %q, want %q", body.Hash, want)
			}

			if len(body.Buckets) != 1 || body.Buckets[0].Label != "Today" {
				t.Fatalf("buckets = %+v", body.Buckets)
			}
			b := body.Buckets[0]
			if len(b.Folders) != 1 || b.Folders[0].Name != "proj" || b.Folders[0].Count != 2 {
				t.Errorf("folders = %+v", b.Folders)
			}
			if !reflect.DeepEqual(b.Folders[0].Files, []string{"a.txt", "sub/b.txt"}) {
				t.Errorf("folder files = %v", b.Folders[0].Files)
			}
			if len(b.Files) != 1 {
				t.Fatalf("files = %+v", b.Files)
			}
			f := b.Files[0]
			if f.Name != "note.txt" || f.Size != 2 || f.SizeLabel != "2.0 B" || f.Preview != "hi" {
				t.Errorf("file = %+v", f)
			}
		})
	}
}

func TestServer_CheckUpdates(t *testing.T) {
	h, svc, storage := newTestServer(t, server.Options{})
	storage.AddFile("a.txt", []byte("a"))

	inv, _ := svc.Inventory(context.Background())
	current, _ := drop.Fingerprint(inv)

	tests := []struct {
		name  string
		prior string
		want  bool
	}{
		{name: "current hash", prior: current, want: false},
		{name: "stale hash", prior: "stale", want: true},
		{name: "no hash", prior: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/check-updates?hash=" + url.QueryEscape(tt.prior)
			rec := do(t, h, httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var got drop.UpdateStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if got.Updated != tt.want || got.Hash != current {
				t.Errorf("status = %+v, want updated=%v hash=%q", got, tt.want, current)
			}
		})
	}
}

func TestServer_Uploads(t *testing.T) {
	tests := []struct {
		name   string
		target string
		files  []string
		want   []string
	}{
		{
			name:   "single file",
			target: "/upload-files",
			files:  []string{"a.txt"},
			want:   []string{"a.txt"},
		},
		{
			name:   "several files get a container",
			target: "/upload-files",
			files:  []string{"a.txt", "b.txt"},
			want:   []string{"Multiple_Files_a/a.txt", "Multiple_Files_a/b.txt"},
		},
		{
			name:   "file upload drops directories",
			target: "/upload-files",
			files:  []string{"deep/dir/c.txt"},
			want:   []string{"c.txt"},
		},
		{
			name:   "folder keeps relative paths",
			target: "/upload-folder",
			files:  []string{"proj/a.txt", "proj/sub/b.txt"},
			want:   []string{"proj/a.txt", "proj/sub/b.txt"},
		},
		{
			name:   "several folders get a container",
			target: "/upload-folder",
			files:  []string{"x/1.txt", "y/2.txt"},
			want:   []string{"Multiple_Folders_x/x/1.txt", "Multiple_Folders_x/y/2.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, storage := newTestServer(t, server.Options{})

			body, ctype := multipartBody(t, tt.files...)
			req := httptest.NewRequest(http.MethodPost, tt.target, body)
			req.Header.Set("Content-Type", ctype)

			rec := do(t, h, req)
			if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
				t.Fatalf("status = %d location = %q, want 303 to /", rec.Code, rec.Header().Get("Location"))
			}
			if got := storage.Files(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stored = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServer_UploadFolderRejectsEscapingPaths(t *testing.T) {
	h, _, storage := newTestServer(t, server.Options{})

	body, ctype := multipartBody(t, "proj/a.txt", "proj/../../etc/passwd")
	req := httptest.NewRequest(http.MethodPost, "/upload-folder", body)
	req.Header.Set("Content-Type", ctype)

	rec := do(t, h, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := storage.Files(); len(got) != 0 {
		t.Errorf("stored = %v, want nothing", got)
	}
}

func TestServer_UploadTooLarge(t *testing.T) {
	h, _, storage := newTestServer(t, server.Options{MaxUploadBytes: 64})

	body, ctype := multipartBody(t, "big.txt")
	body.WriteString(strings.Repeat("x", 256))
	req := httptest.NewRequest(http.MethodPost, "/upload-files", body)
	req.Header.Set("Content-Type", ctype)

	rec := do(t, h, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := storage.Files(); len(got) != 0 {
		t.Errorf("stored = %v, want nothing", got)
	}
}

func TestServer_UploadText(t *testing.T) {
	h, _, storage := newTestServer(t, server.Options{})

	post := func(title, text string) *httptest.ResponseRecorder {
		form := url.Values{"title": {title}, "text_content": {text}}
		req := httptest.NewRequest(http.MethodPost, "/upload-text", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return do(t, h, req)
	}

	for _, text := range []string{"first", "second"} {
		if rec := post("Meeting notes!", text); rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
	}
	if rec := post("ignored", ""); rec.Code != http.StatusSeeOther {
		t.Fatalf("empty text status = %d, want 303", rec.Code)
	}

	want := []string{"Meeting_notes.txt", "Meeting_notes_1.txt"}
	if got := storage.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("stored = %v, want %v", got, want)
	}
	if got, _ := storage.Content("Meeting_notes_1.txt"); string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}
}

func TestServer_GetFile(t *testing.T) {
	h, _, storage := newTestServer(t, server.Options{})
	storage.AddFile("note.txt", []byte("hello"))
	storage.AddFile("proj/a.txt", []byte("nested"))

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantBody string
	}{
		{name: "top-level file", target: "/uploads/note.txt", wantCode: http.StatusOK, wantBody: "hello"},
		{name: "file inside folder", target: "/uploads/proj/a.txt", wantCode: http.StatusOK, wantBody: "nested"},
		{name: "missing file", target: "/uploads/nope.txt", wantCode: http.StatusNotFound},
		{name: "folder", target: "/uploads/proj", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestServer_DownloadFolder(t *testing.T) {
	h, _, storage := newTestServer(t, server.Options{})
	storage.AddFile("proj/a.txt", []byte("a"))
	storage.AddFile("proj/sub/b.txt", []byte("b"))
	storage.AddFile("note.txt", []byte("n"))

	t.Run("streams a zip attachment", func(t *testing.T) {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, "/download-folder/proj", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != "application/zip" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=proj.zip" {
			t.Errorf("Content-Disposition = %q", got)
		}
		want := map[string]string{"a.txt": "a", "sub/b.txt": "b"}
		if got := testutil.ZipEntries(t, rec.Body.Bytes()); !reflect.DeepEqual(got, want) {
			t.Errorf("entries = %v, want %v", got, want)
		}
	})

	t.Run("nested folder is named after its last segment", func(t *testing.T) {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, "/download-folder/proj/sub", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=sub.zip" {
			t.Errorf("Content-Disposition = %q", got)
		}
		want := map[string]string{"b.txt": "b"}
		if got := testutil.ZipEntries(t, rec.Body.Bytes()); !reflect.DeepEqual(got, want) {
			t.Errorf("entries = %v, want %v", got, want)
		}
	})

	for _, name := range []string{"missing", "note.txt", "proj/missing"} {
		t.Run("not found "+name, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodGet, "/download-folder/"+name, nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
		})
	}
}

func TestServer_Delete(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{name: "delete file", target: "/delete/note.txt", want: []string{"proj/a.txt"}},
		{name: "delete folder", target: "/delete-folder/proj", want: []string{"note.txt"}},
		{name: "missing file redirects", target: "/delete/nope.txt", want: []string{"note.txt", "proj/a.txt"}},
		{name: "file route refuses folder", target: "/delete/proj", want: []string{"note.txt", "proj/a.txt"}},
		{name: "folder route refuses file", target: "/delete-folder/note.txt", want: []string{"note.txt", "proj/a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, storage := newTestServer(t, server.Options{})
			storage.AddFile("note.txt", []byte("n"))
			storage.AddFile("proj/a.txt", []byte("a"))

			rec := do(t, h, httptest.NewRequest(http.MethodPost, tt.target, nil))
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want 303", rec.Code)
			}
			if got := storage.Files(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("remaining = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServer_Preview(t *testing.T) {
	h, _, storage := newTestServer(t, server.Options{})
	storage.AddFile("note.txt", []byte("some text"))
	storage.AddFile("bad.txt", []byte{0xff, 0xfe})

	tests := []struct {
		target string
		want   string
	}{
		{target: "/api/preview/note.txt", want: "some text"},
		{target: "/api/preview/bad.txt", want: drop.PreviewUnavailable},
		{target: "/api/preview/missing.txt", want: drop.PreviewUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["preview"] != tt.want {
				t.Errorf("preview = %q, want %q", body["preview"], tt.want)
			}
		})
	}
}

func TestServer_ServeAndStop(t *testing.T) {
	clock := testutil.FixedClock()
	svc := drop.NewDropService(testutil.NewMockStorage(clock), drop.NopJournal{}, drop.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	s := server.New(svc, drop.NewNopLogger(), server.Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil after Stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Stop")
	}
}
