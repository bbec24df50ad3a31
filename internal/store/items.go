package store

import (
	"fmt"

	"lectern/internal/models"
)

// ReplaceItems swaps a subject's persisted snapshot for items in one
// transaction. Readers see either the old list or the new one.
func (s *Store) ReplaceItems(subjectID string, items []models.MediaItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replacing items: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM catalog_items WHERE subject_id = ?`, subjectID); err != nil {
		return fmt.Errorf("clearing items for %s: %w", subjectID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO catalog_items
		(subject_id, position, item_id, title, description, content_type, file_type, upload_date, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing item insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		if _, err := stmt.Exec(subjectID, i, string(it.ID), it.Title, it.Description,
			it.ContentType, string(it.FileType), it.UploadDate.UTC(), it.SizeBytes); err != nil {
			return fmt.Errorf("inserting item %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// ListItems returns the persisted snapshot for a subject in backend order.
func (s *Store) ListItems(subjectID string) ([]models.MediaItem, error) {
	rows, err := s.db.Query(`SELECT item_id, title, description, content_type, file_type, upload_date, size_bytes
		FROM catalog_items WHERE subject_id = ? ORDER BY position`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []models.MediaItem{}
	for rows.Next() {
		it := models.MediaItem{SubjectID: subjectID}
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.ContentType, &it.FileType, &it.UploadDate, &it.SizeBytes); err != nil {
			return nil, err
		}
		it.UploadDate = it.UploadDate.UTC()
		items = append(items, it)
	}
	return items, rows.Err()
}
