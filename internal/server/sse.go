package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func (s *Server) handlePlaybackSSE(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}
	ch := s.controller.Subscribe()
	defer s.controller.Unsubscribe(ch)
	streamSSE(w, r, s, s.controller.Current(), ch)
}

func (s *Server) handleUploadSSE(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusServiceUnavailable, "uploads not configured")
		return
	}
	ch := s.uploads.Subscribe()
	defer s.uploads.Unsubscribe(ch)
	streamSSE(w, r, s, s.uploads.Status(), ch)
}

// streamSSE writes current, then every value from ch, until the client
// goes away, ch closes or the server shuts down.
func streamSSE[T any](w http.ResponseWriter, r *http.Request, s *Server, current T, ch <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if data, err := json.Marshal(current); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.baseCtx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
