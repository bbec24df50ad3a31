package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lectern/internal/models"
	"lectern/internal/playback"
)

type playbackRequest struct {
	ItemID models.ItemID `json:"item_id"`
}

type itemPlayback struct {
	ItemID  models.ItemID  `json:"item_id"`
	State   playback.State `json:"state"`
	Loading bool           `json:"loading"`
}

func decodePlaybackRequest(w http.ResponseWriter, r *http.Request) (models.ItemID, bool) {
	var req playbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return "", false
	}
	if !isValidPathSegment(string(req.ItemID)) {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return "", false
	}
	return req.ItemID, true
}

// handlePlay returns once the item's surface is bound and loading. The
// browser must open the item's surface socket for the request to finish.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	id, ok := decodePlaybackRequest(w, r)
	if !ok {
		return
	}
	if err := s.controller.PlayItem(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Current())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id, ok := decodePlaybackRequest(w, r)
	if !ok {
		return
	}
	s.controller.StopItem(id)
	writeJSON(w, http.StatusOK, s.controller.Current())
}

func (s *Server) handleCurrentPlayback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Current())
}

func (s *Server) handleItemPlayback(w http.ResponseWriter, r *http.Request) {
	id := models.ItemID(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, itemPlayback{
		ItemID:  id,
		State:   s.controller.State(id),
		Loading: s.controller.IsLoading(id),
	})
}
