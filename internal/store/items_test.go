package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/models"
)

func TestReplaceItems(t *testing.T) {
	s := newMigratedStore(t)
	uploaded := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceItems("s1", []models.MediaItem{
		{ID: "2", Title: "Second", ContentType: "video/mp4", FileType: models.FileTypeVideo, UploadDate: uploaded, SizeBytes: 10},
		{ID: "1", Title: "First", ContentType: "image/png", FileType: models.FileTypeImage, UploadDate: uploaded},
	}))
	require.NoError(t, s.ReplaceItems("s2", []models.MediaItem{{ID: "9", Title: "Other"}}))

	items, err := s.ListItems("s1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.ItemID("2"), items[0].ID, "backend order is kept")
	assert.Equal(t, models.FileTypeVideo, items[0].FileType)
	assert.Equal(t, "s1", items[0].SubjectID)
	assert.True(t, items[0].UploadDate.Equal(uploaded))
	assert.Equal(t, int64(10), items[0].SizeBytes)

	require.NoError(t, s.ReplaceItems("s1", []models.MediaItem{{ID: "3", Title: "Third"}}))
	items, err = s.ListItems("s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemID("3"), items[0].ID)

	other, err := s.ListItems("s2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "replacing one subject leaves the others alone")
}

func TestListItemsUnknownSubject(t *testing.T) {
	s := newMigratedStore(t)
	items, err := s.ListItems("nope")
	require.NoError(t, err)
	assert.Empty(t, items)
}
