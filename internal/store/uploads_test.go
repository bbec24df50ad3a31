package store

import (
	"testing"
	"time"

	"lectern/internal/models"
)

func TestInsertAndListUploads(t *testing.T) {
	s := newMigratedStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := &models.UploadRecord{
		UploadID: "u1", SubjectID: "s1", Title: "Week 1", FileName: "w1.mp4", SizeBytes: 2048,
		Status: models.UploadStatusSucceeded, ItemID: "10", StartedAt: base, FinishedAt: base.Add(time.Minute),
	}
	if err := s.InsertUpload(first); err != nil {
		t.Fatalf("InsertUpload: %v", err)
	}
	if first.ID == 0 {
		t.Error("expected ID to be set")
	}

	second := &models.UploadRecord{
		UploadID: "u2", SubjectID: "s1", Title: "Week 2", FileName: "w2.mp4",
		Status: models.UploadStatusFailed, Message: "file too large", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour),
	}
	if err := s.InsertUpload(second); err != nil {
		t.Fatalf("InsertUpload: %v", err)
	}

	got, err := s.ListUploads(10)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(got))
	}
	if got[0].UploadID != "u2" || got[0].Message != "file too large" || got[0].Status != models.UploadStatusFailed {
		t.Errorf("newest upload = %+v", got[0])
	}
	if got[1].ItemID != "10" || !got[1].FinishedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("oldest upload = %+v", got[1])
	}
}

func TestInsertUploadDuplicateID(t *testing.T) {
	s := newMigratedStore(t)
	rec := models.UploadRecord{UploadID: "dup", SubjectID: "s", Title: "t", FileName: "f", Status: models.UploadStatusFailed}
	a, b := rec, rec
	if err := s.InsertUpload(&a); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertUpload(&b); err == nil {
		t.Fatal("expected unique constraint error")
	}
}
