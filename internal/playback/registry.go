package playback

import (
	"errors"
	"sort"
	"sync"

	"lectern/internal/models"
)

var (
	ErrSurfaceInUse = errors.New("surface is bound to another item")
	ErrAlreadyBound = errors.New("item already has a bound surface")
	ErrNotBound     = errors.New("item has no bound surface")
)

type binding struct {
	surface Surface
	removes map[Event]func()
}

// Registry owns the mapping from item id to its bound surface and the
// listeners registered on it.
type Registry struct {
	mu      sync.Mutex
	entries map[models.ItemID]*binding
	owners  map[Surface]models.ItemID
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[models.ItemID]*binding),
		owners:  make(map[Surface]models.ItemID),
	}
}

// Bind associates s with id. A surface belongs to at most one id, and an id
// must be unbound before it can be bound again.
func (r *Registry) Bind(id models.ItemID, s Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owners[s]; ok && owner != id {
		return ErrSurfaceInUse
	}
	if _, ok := r.entries[id]; ok {
		return ErrAlreadyBound
	}
	r.entries[id] = &binding{surface: s, removes: make(map[Event]func())}
	r.owners[s] = id
	return nil
}

// Listen registers fn for ev on the surface bound to id, replacing any
// listener previously registered under the same tag.
func (r *Registry) Listen(id models.ItemID, ev Event, fn func(err error)) error {
	r.mu.Lock()
	b, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotBound
	}
	old := b.removes[ev]
	b.removes[ev] = b.surface.On(ev, fn)
	r.mu.Unlock()

	if old != nil {
		old()
	}
	return nil
}

// UnbindAll removes every listener registered for id and forgets its
// surface. Unbinding an id with no registrations is a no-op.
func (r *Registry) UnbindAll(id models.ItemID) {
	r.mu.Lock()
	b, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	delete(r.owners, b.surface)
	r.mu.Unlock()

	for _, remove := range b.removes {
		if remove != nil {
			remove()
		}
	}
}

func (r *Registry) Surface(id models.ItemID) (Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return b.surface, true
}

// Tags returns the events id currently has listeners for, sorted.
func (r *Registry) Tags(id models.ItemID) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.entries[id]
	if !ok {
		return nil
	}
	tags := make([]Event, 0, len(b.removes))
	for ev := range b.removes {
		tags = append(tags, ev)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
