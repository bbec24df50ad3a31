package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"lectern/internal/catalog"
	"lectern/internal/models"
	"lectern/internal/playback"
	"lectern/internal/upload"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Order
// matters: a PlaybackError wrapping ErrNotFound is a 404.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		verr *models.ValidationError
		perr *models.PlaybackError
		nerr *models.NetworkError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, upload.ErrInFlight), errors.Is(err, playback.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, catalog.ErrNotPlayable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &perr):
		writeError(w, http.StatusUnprocessableEntity, perr.Error())
	case errors.As(err, &nerr):
		writeError(w, http.StatusBadGateway, nerr.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func isValidPathSegment(s string) bool {
	return s != "" && !strings.Contains(s, "..") && !strings.Contains(s, "/") &&
		!strings.Contains(s, "?") && !strings.Contains(s, "#")
}
