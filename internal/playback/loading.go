package playback

import (
	"sync"

	"lectern/internal/models"
)

// LoadingTracker holds the last loading signal observed per item.
type LoadingTracker struct {
	mu      sync.RWMutex
	loading map[models.ItemID]bool
}

func NewLoadingTracker() *LoadingTracker {
	return &LoadingTracker{loading: make(map[models.ItemID]bool)}
}

func (t *LoadingTracker) SetLoading(id models.ItemID, loading bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if loading {
		t.loading[id] = true
		return
	}
	delete(t.loading, id)
}

// IsLoading is false for ids never seen.
func (t *LoadingTracker) IsLoading(id models.ItemID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading[id]
}
