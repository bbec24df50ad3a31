package server

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"lectern/internal/models"
	"lectern/internal/wssurface"
)

// handleSurface upgrades the browser's media element connection. The
// item's surface is mounted for as long as the socket stays open.
func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	id := models.ItemID(chi.URLParam(r, "id"))
	if !isValidPathSegment(string(id)) {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	surface, err := wssurface.Upgrade(w, r, s.checkOrigin)
	if err != nil {
		slog.Warn("surface upgrade failed", "item_id", id, "error", err)
		return
	}
	s.mounts.Attach(id, surface)
	slog.Info("surface attached", "item_id", id, "surface", surface.ID())

	if err := surface.Run(s.baseCtx); err != nil {
		slog.Warn("surface connection ended", "item_id", id, "surface", surface.ID(), "error", err)
	}
	s.controller.Unmount(id, surface)
	slog.Info("surface detached", "item_id", id, "surface", surface.ID())
}

// checkOrigin accepts same-origin sockets and, when configured, the
// portal's CORS origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.corsOrigin != "" && origin == s.corsOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
