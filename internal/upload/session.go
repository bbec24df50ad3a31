package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"lectern/internal/catalog"
	"lectern/internal/models"
)

// ErrInFlight rejects a Start while another upload is still running.
var ErrInFlight = errors.New("an upload is already in progress")

const genericFailure = "upload failed"

type State int

const (
	StateIdle State = iota
	StateInFlight
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown upload state %q", b)
}

// File is the user's selected file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Form is what the upload view currently holds.
type Form struct {
	File     *File
	Metadata models.UploadMetadata
}

type Outcome struct {
	UploadID string        `json:"upload_id"`
	State    State         `json:"state"`
	ItemID   models.ItemID `json:"item_id,omitempty"`
	Message  string        `json:"message,omitempty"`
}

type Uploader interface {
	Upload(ctx context.Context, req catalog.UploadRequest, progress catalog.ProgressFunc) (models.ItemID, error)
}

type Refresher interface {
	Refresh(ctx context.Context, subjectID string) error
}

type Recorder interface {
	InsertUpload(rec *models.UploadRecord) error
}

// Session runs at most one upload at a time. It is reused across
// submissions; each Start begins from a fresh transfer.
type Session struct {
	uploader  Uploader
	refresher Refresher
	recorder  Recorder
	now       func() time.Time

	mu       sync.Mutex
	state    State
	percent  int
	form     Form
	uploadID string

	subMu       sync.Mutex
	subscribers map[chan Status]struct{}
}

type Option func(*Session)

func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

func NewSession(u Uploader, r Refresher, opts ...Option) *Session {
	s := &Session{
		uploader:  u,
		refresher: r,
		now:       func() time.Time { return time.Now().UTC() },

		subscribers: make(map[chan Status]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start validates the input, then uploads it. onProgress, if set, receives
// each new percentage. A call made while another upload is in flight
// returns ErrInFlight without side effects.
func (s *Session) Start(ctx context.Context, file *File, meta models.UploadMetadata, onProgress func(percent int)) (Outcome, error) {
	s.mu.Lock()
	if s.state == StateInFlight {
		s.mu.Unlock()
		return Outcome{}, ErrInFlight
	}
	if err := validate(file, meta); err != nil {
		s.mu.Unlock()
		return Outcome{}, err
	}
	s.state = StateInFlight
	s.percent = 0
	s.form = Form{File: file, Metadata: meta}
	s.uploadID = uuid.NewString()
	uploadID := s.uploadID
	s.mu.Unlock()
	s.publish(s.Status())

	started := s.now()
	var tracker progressTracker
	progress := func(sent, total int64) {
		s.mu.Lock()
		pct, report := tracker.observe(sent, total)
		if report {
			s.percent = pct
		}
		s.mu.Unlock()
		if !report {
			return
		}
		s.publish(s.Status())
		if onProgress != nil {
			onProgress(pct)
		}
	}

	itemID, err := s.uploader.Upload(ctx, catalog.UploadRequest{
		FileName:    file.Name,
		ContentType: file.ContentType,
		Size:        file.Size,
		Body:        file.Body,
		Metadata:    meta,
	}, progress)

	rec := &models.UploadRecord{
		UploadID:   uploadID,
		SubjectID:  meta.SubjectID,
		Title:      meta.Title,
		FileName:   file.Name,
		SizeBytes:  file.Size,
		StartedAt:  started,
		FinishedAt: s.now(),
	}

	if err != nil {
		msg := models.ServerMessage(err)
		if msg == "" {
			msg = genericFailure
		}
		s.mu.Lock()
		s.state = StateFailed
		s.mu.Unlock()
		s.publish(s.Status())

		rec.Status = models.UploadStatusFailed
		rec.Message = msg
		s.record(rec)
		slog.Warn("upload failed", "upload_id", uploadID, "file", file.Name, "error", err)
		return Outcome{UploadID: uploadID, State: StateFailed, Message: msg}, err
	}

	s.mu.Lock()
	s.state = StateSucceeded
	s.percent = 0
	s.form = Form{}
	s.mu.Unlock()
	s.publish(s.Status())

	rec.Status = models.UploadStatusSucceeded
	rec.ItemID = itemID
	s.record(rec)
	slog.Info("upload complete", "upload_id", uploadID, "item_id", itemID, "size", humanize.Bytes(uint64(max(file.Size, 0))))

	// The refreshed list is not tied to the upload response; a failed
	// refresh leaves the previous snapshot in place.
	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx, meta.SubjectID); err != nil {
			slog.Warn("refreshing catalog after upload", "subject_id", meta.SubjectID, "error", err)
		}
	}
	return Outcome{UploadID: uploadID, State: StateSucceeded, ItemID: itemID}, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// Form returns the fields the view should display. After a failure the
// selected file is still there, since a file picker cannot be restored once
// cleared.
func (s *Session) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Status is a point-in-time view of the session for polling clients.
type Status struct {
	UploadID string `json:"upload_id,omitempty"`
	State    State  `json:"state"`
	Progress int    `json:"progress"`
	FileName string `json:"file_name,omitempty"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{UploadID: s.uploadID, State: s.state, Progress: s.percent}
	if s.form.File != nil {
		st.FileName = s.form.File.Name
	}
	return st
}

func (s *Session) record(rec *models.UploadRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.InsertUpload(rec); err != nil {
		slog.Warn("recording upload", "upload_id", rec.UploadID, "error", err)
	}
}

func validate(file *File, meta models.UploadMetadata) error {
	if file == nil || file.Name == "" || file.Body == nil {
		return &models.ValidationError{Field: "file"}
	}
	return meta.Validate()
}
