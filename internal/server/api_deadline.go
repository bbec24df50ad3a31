package server

import (
	"net/http"

	"lectern/internal/deadline"
)

type deadlineResult struct {
	OnTime bool `json:"on_time"`
}

// handleDeadline never fails: timestamps that do not parse count as late.
func (s *Server) handleDeadline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, deadlineResult{
		OnTime: deadline.IsOnTime(q.Get("submitted_at"), q.Get("due_at")),
	})
}
