package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"lectern/internal/models"
	"lectern/internal/upload"
)

const (
	maxUploadSize   = 2 << 30 // 2 GiB
	multipartMemory = 32 << 20
	maxPerPage      = 100
)

type uploadFailure struct {
	Error   string         `json:"error"`
	Outcome upload.Outcome `json:"outcome"`
}

type uploadEntry struct {
	models.UploadRecord
	Size string `json:"size"`
	Ago  string `json:"ago"`
}

// handleStartUpload accepts the form (file, title, description,
// subject_id) and forwards it to the backend. A client that disconnects
// does not abort the transfer.
func (s *Server) handleStartUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	meta := models.UploadMetadata{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		SubjectID:   r.FormValue("subject_id"),
	}

	var file *upload.File
	f, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		file = &upload.File{
			Name:        hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Size:        hdr.Size,
			Body:        f,
		}
	case errors.Is(err, http.ErrMissingFile):
		// reported by the session as a validation error
	default:
		writeError(w, http.StatusBadRequest, "invalid file part")
		return
	}

	outcome, err := s.uploads.Start(context.WithoutCancel(r.Context()), file, meta, nil)
	if err != nil {
		if outcome.State == upload.StateFailed {
			writeJSON(w, http.StatusBadGateway, uploadFailure{Error: outcome.Message, Outcome: outcome})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.uploads.Status())
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > maxPerPage {
		limit = maxPerPage
	}
	records, err := s.store.ListUploads(limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	now := time.Now()
	entries := make([]uploadEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, uploadEntry{
			UploadRecord: rec,
			Size:         humanize.Bytes(uint64(max(rec.SizeBytes, 0))),
			Ago:          humanize.RelTime(rec.FinishedAt, now, "ago", "from now"),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}
