package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"lectern/internal/models"
)

var ErrNotMounted = errors.New("surface not mounted")

// MountTable is the acknowledgement channel between the view layer and the
// controller: the view calls Attach once an item's surface exists, and the
// controller awaits it instead of guessing how long mounting takes.
type MountTable struct {
	mu      sync.Mutex
	mounted map[models.ItemID]Surface
	waiters map[models.ItemID][]chan Surface
}

func NewMountTable() *MountTable {
	return &MountTable{
		mounted: make(map[models.ItemID]Surface),
		waiters: make(map[models.ItemID][]chan Surface),
	}
}

// Attach records s as the mounted surface for id and wakes every waiter.
func (m *MountTable) Attach(id models.ItemID, s Surface) {
	m.mu.Lock()
	m.mounted[id] = s
	waiters := m.waiters[id]
	delete(m.waiters, id)
	m.mu.Unlock()

	for _, ch := range waiters {
		ch <- s
	}
}

// Detach forgets s if it is still the mounted surface for id.
func (m *MountTable) Detach(id models.ItemID, s Surface) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.mounted[id]; ok && cur == s {
		delete(m.mounted, id)
		return true
	}
	return false
}

func (m *MountTable) Lookup(id models.ItemID) (Surface, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.mounted[id]
	return s, ok
}

// Await returns the surface for id, waiting up to timeout for the view
// layer to attach it.
func (m *MountTable) Await(ctx context.Context, id models.ItemID, timeout time.Duration) (Surface, error) {
	m.mu.Lock()
	if s, ok := m.mounted[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	ch := make(chan Surface, 1)
	m.waiters[id] = append(m.waiters[id], ch)
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-ch:
		return s, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeWaiter(id, ch)
	// Attach may have fired between the timeout and taking the lock.
	if s, ok := m.mounted[id]; ok {
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotMounted
}

func (m *MountTable) removeWaiter(id models.ItemID, ch chan Surface) {
	waiters := m.waiters[id]
	for i, w := range waiters {
		if w == ch {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(m.waiters, id)
	} else {
		m.waiters[id] = waiters
	}
}
