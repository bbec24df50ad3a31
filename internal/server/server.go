package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lectern/internal/catalog"
	"lectern/internal/models"
	"lectern/internal/playback"
	"lectern/internal/store"
	"lectern/internal/upload"
)

// BlobSource streams an item's bytes from the backend.
type BlobSource interface {
	Download(ctx context.Context, id models.ItemID, rangeHeader string) (*catalog.Blob, error)
}

type Server struct {
	router     chi.Router
	store      *store.Store
	controller *playback.Controller
	mounts     *playback.MountTable
	catalog    *catalog.Catalog
	blobs      BlobSource
	uploads    *upload.Session
	corsOrigin string
	limiter    *rateLimiter

	// surfaces live until Close; http.Server.Shutdown does not reach
	// hijacked connections.
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewServer(s *store.Store, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		router:  chi.NewRouter(),
		store:   s,
		limiter: newRateLimiter(60, time.Minute),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithPlayback wires the controller and the mount table its surfaces
// attach to.
func WithPlayback(c *playback.Controller, m *playback.MountTable) Option {
	return func(s *Server) {
		s.controller = c
		s.mounts = m
	}
}

func WithCatalog(c *catalog.Catalog, blobs BlobSource) Option {
	return func(s *Server) {
		s.catalog = c
		s.blobs = blobs
	}
}

func WithUploads(u *upload.Session) Option {
	return func(s *Server) { s.uploads = u }
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close disconnects every media surface and stops background work.
func (s *Server) Close() {
	s.cancel()
	s.limiter.stop()
}
