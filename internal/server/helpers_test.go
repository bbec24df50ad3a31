package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"lectern/internal/catalog"
	"lectern/internal/playback"
	"lectern/internal/store"
	"lectern/internal/upload"
	"lectern/migrations"
)

// fakeBackend stands in for the course REST backend.
type fakeBackend struct {
	mu       sync.Mutex
	down     bool
	items    map[string][]map[string]any
	blobs    map[string]string
	uploads  []map[string]string
	deleted  []string
	rejectUp string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		items: map[string][]map[string]any{
			"math-101": {
				{"id": 1, "title": "Lecture 1", "content_type": "video/mp4", "upload_date": "2024-03-01T09:00:00Z", "size_bytes": 10},
				{"id": 2, "title": "Slides", "content_type": "image/png", "upload_date": "2024-03-02T09:00:00Z", "size_bytes": 4},
			},
		},
		blobs: map[string]string{"1": "0123456789", "2": "png!"},
	}
}

func (b *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			down := b.down
			b.mu.Unlock()
			if down {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"message":"backend offline"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/api/subjects/{subject}/items", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		json.NewEncoder(w).Encode(b.items[chi.URLParam(r, "subject")])
	})
	r.Post("/api/subjects/{subject}/items", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.rejectUp != "" {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			json.NewEncoder(w).Encode(map[string]string{"message": b.rejectUp})
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		subject := chi.URLParam(r, "subject")
		b.uploads = append(b.uploads, map[string]string{
			"subject": subject, "title": r.FormValue("title"), "file": hdr.Filename, "data": string(data),
		})
		id := "new-" + r.FormValue("title")
		b.items[subject] = append(b.items[subject], map[string]any{"id": id, "title": r.FormValue("title"), "content_type": "video/mp4"})
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})
	r.Delete("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := chi.URLParam(r, "id")
		for subject, items := range b.items {
			for i, it := range items {
				if jsonID(it["id"]) == id {
					b.items[subject] = append(items[:i:i], items[i+1:]...)
					b.deleted = append(b.deleted, id)
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"no such item"}`))
	})
	r.Get("/api/items/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		data, ok := b.blobs[chi.URLParam(r, "id")]
		b.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeContent(w, r, "", time.Time{}, strings.NewReader(data))
	})
	return r
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return strings.Trim(string(b), `"`)
}

func (b *fakeBackend) setDown(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}

// stillSurface accepts every command and never emits events.
type stillSurface struct{}

func (s *stillSurface) On(playback.Event, func(error)) func() { return func() {} }
func (s *stillSurface) SetSource(string, string)              {}
func (s *stillSurface) ClearSource()                          {}
func (s *stillSurface) Load()                                 {}
func (s *stillSurface) Play(context.Context) error            { return nil }
func (s *stillSurface) Pause()                                {}
func (s *stillSurface) Seek(time.Duration)                    {}

type testEnv struct {
	srv        *Server
	store      *store.Store
	backend    *fakeBackend
	catalog    *catalog.Catalog
	controller *playback.Controller
	mounts     *playback.MountTable
	uploads    *upload.Session
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MigrateFS(migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newTestStore(t)

	backend := newFakeBackend()
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)

	client, err := catalog.NewClient(backendSrv.URL, catalog.WithRateLimit(rate.Inf, 0))
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(client, catalog.WithSnapshotStore(st))
	mounts := playback.NewMountTable()
	ctrl := playback.NewController(mounts, cat,
		playback.WithMountTimeout(200*time.Millisecond),
		playback.WithErrorHandler(func(error) {}),
	)
	uploads := upload.NewSession(client, cat, upload.WithRecorder(st))

	srv := NewServer(st,
		WithPlayback(ctrl, mounts),
		WithCatalog(cat, client),
		WithUploads(uploads),
	)
	t.Cleanup(srv.Close)

	return &testEnv{
		srv: srv, store: st, backend: backend, catalog: cat,
		controller: ctrl, mounts: mounts, uploads: uploads,
	}
}

// loadSubject fetches math-101 into the catalog so its items can play.
func (e *testEnv) loadSubject(t *testing.T) {
	t.Helper()
	if err := e.catalog.Refresh(context.Background(), "math-101"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, w.Body.String())
	}
	return v
}

var _ playback.Surface = (*stillSurface)(nil)
