package models

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

type ItemID string

type FileType string

const (
	FileTypeVideo FileType = "video"
	FileTypeImage FileType = "image"
	FileTypeOther FileType = "other"
)

// FileTypeFromMIME maps a content type such as "video/mp4" to its MIME class.
func FileTypeFromMIME(contentType string) FileType {
	class, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), "/")
	switch class {
	case "video":
		return FileTypeVideo
	case "image":
		return FileTypeImage
	}
	return FileTypeOther
}

// MediaItem is a catalog entry as returned by the course backend. Items are
// never patched in place; a refresh replaces the whole collection.
type MediaItem struct {
	ID          ItemID    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ContentType string    `json:"content_type"`
	FileType    FileType  `json:"file_type"`
	UploadDate  time.Time `json:"upload_date"`
	SizeBytes   int64     `json:"size_bytes"`
	StreamURL   string    `json:"stream_url"`
}

// Playable reports whether the item can occupy the media surface.
func (m *MediaItem) Playable() bool {
	return m.FileType == FileTypeVideo
}

type UploadMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SubjectID   string `json:"subject_id"`
}

// Validate checks required fields before any network call is made.
// Description is optional.
func (m UploadMetadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return &ValidationError{Field: "title"}
	}
	if strings.TrimSpace(m.SubjectID) == "" {
		return &ValidationError{Field: "subject_id"}
	}
	return nil
}

type UploadStatus string

const (
	UploadStatusSucceeded UploadStatus = "succeeded"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadRecord is the audit entry written once an upload resolves.
type UploadRecord struct {
	ID         int64        `json:"id"`
	UploadID   string       `json:"upload_id"`
	SubjectID  string       `json:"subject_id"`
	Title      string       `json:"title"`
	FileName   string       `json:"file_name"`
	SizeBytes  int64        `json:"size_bytes"`
	Status     UploadStatus `json:"status"`
	ItemID     ItemID       `json:"item_id,omitempty"`
	Message    string       `json:"message,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}
