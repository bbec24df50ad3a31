package store

import (
	"fmt"

	"lectern/internal/models"
)

const uploadColumns = `id, upload_id, subject_id, title, file_name, size_bytes, status, item_id, message, started_at, finished_at`

func scanUpload(scanner interface{ Scan(...any) error }) (models.UploadRecord, error) {
	var u models.UploadRecord
	err := scanner.Scan(&u.ID, &u.UploadID, &u.SubjectID, &u.Title, &u.FileName, &u.SizeBytes,
		&u.Status, &u.ItemID, &u.Message, &u.StartedAt, &u.FinishedAt)
	return u, err
}

func (s *Store) InsertUpload(rec *models.UploadRecord) error {
	created, err := scanUpload(s.db.QueryRow(
		`INSERT INTO uploads (upload_id, subject_id, title, file_name, size_bytes, status, item_id, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+uploadColumns,
		rec.UploadID, rec.SubjectID, rec.Title, rec.FileName, rec.SizeBytes,
		string(rec.Status), string(rec.ItemID), rec.Message, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	))
	if err != nil {
		return fmt.Errorf("inserting upload: %w", err)
	}
	*rec = created
	return nil
}

// ListUploads returns the most recent uploads first.
func (s *Store) ListUploads(limit int) ([]models.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+uploadColumns+` FROM uploads ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	defer rows.Close()

	uploads := []models.UploadRecord{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}
