package server

import (
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lectern/internal/models"
)

type itemList struct {
	Items []models.MediaItem `json:"items"`
	Stale bool               `json:"stale"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if !isValidPathSegment(subject) {
		writeError(w, http.StatusBadRequest, "invalid subject")
		return
	}
	items, stale, err := s.catalog.List(r.Context(), subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemList{Items: items, Stale: stale})
}

func (s *Server) handleRefreshItems(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if !isValidPathSegment(subject) {
		writeError(w, http.StatusBadRequest, "invalid subject")
		return
	}
	if err := s.catalog.Refresh(r.Context(), subject); err != nil {
		writeServiceError(w, err)
		return
	}
	items, _ := s.catalog.Items(subject)
	writeJSON(w, http.StatusOK, itemList{Items: items})
}

// handleDeleteItem stops the item first when it holds the media surface.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := models.ItemID(chi.URLParam(r, "id"))
	if !isValidPathSegment(string(id)) {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	s.controller.StopItem(id)
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStreamItem is the playback source. Range requests pass through so
// the media element can seek.
func (s *Server) handleStreamItem(w http.ResponseWriter, r *http.Request) {
	s.proxyBlob(w, r, r.Header.Get("Range"), false)
}

func (s *Server) handleDownloadItem(w http.ResponseWriter, r *http.Request) {
	s.proxyBlob(w, r, "", true)
}

func (s *Server) proxyBlob(w http.ResponseWriter, r *http.Request, rangeHeader string, attachment bool) {
	id := models.ItemID(chi.URLParam(r, "id"))
	if !isValidPathSegment(string(id)) {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	blob, err := s.blobs.Download(r.Context(), id, rangeHeader)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeServiceError(w, err)
		return
	}
	defer blob.Body.Close()

	item, known := s.catalog.Item(id)
	ct := blob.ContentType
	if ct == "" && known {
		ct = item.ContentType
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Accept-Ranges", "bytes")
	if blob.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	if blob.ContentRange != "" {
		h.Set("Content-Range", blob.ContentRange)
	}
	if attachment {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": downloadName(id, item, known, ct),
		}))
	}

	status := blob.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := io.Copy(w, blob.Body); err != nil {
		log.Printf("streaming item %s: %v", id, err)
	}
}

func downloadName(id models.ItemID, item models.MediaItem, known bool, contentType string) string {
	name := string(id)
	if known && item.Title != "" {
		name = item.Title
	}
	if path.Ext(name) == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}
