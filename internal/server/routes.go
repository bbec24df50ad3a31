package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(corsMiddleware(s.corsOrigin))

		// Long-lived or binary responses.
		r.Get("/playback/events", s.handlePlaybackSSE)
		r.Get("/uploads/events", s.handleUploadSSE)
		r.Get("/items/{id}/surface", s.handleSurface)
		r.Get("/items/{id}/stream", s.handleStreamItem)
		r.Get("/items/{id}/download", s.handleDownloadItem)
		r.With(jsonContentType, s.limiter.limit).Post("/uploads", s.handleStartUpload)

		r.Group(func(r chi.Router) {
			r.Use(limitBody)
			r.Use(jsonContentType)

			r.Get("/subjects/{subject}/items", s.handleListItems)
			r.Post("/subjects/{subject}/refresh", s.handleRefreshItems)
			r.With(s.limiter.limit).Delete("/items/{id}", s.handleDeleteItem)

			r.Get("/playback", s.handleCurrentPlayback)
			r.Get("/playback/items/{id}", s.handleItemPlayback)
			r.With(s.limiter.limit).Post("/playback/play", s.handlePlay)
			r.Post("/playback/stop", s.handleStop)

			r.Get("/uploads", s.handleListUploads)
			r.Get("/uploads/status", s.handleUploadStatus)

			r.Get("/deadline", s.handleDeadline)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
