package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lectern/internal/models"
	"lectern/internal/playback"
)

var ErrNotPlayable = errors.New("item is not playable")

// Backend is the part of the course REST API the catalog reads and mutates.
type Backend interface {
	ListItems(ctx context.Context, subjectID string) ([]models.MediaItem, error)
	DeleteItem(ctx context.Context, id models.ItemID) error
}

// SnapshotStore persists the last good snapshot per subject.
type SnapshotStore interface {
	ReplaceItems(subjectID string, items []models.MediaItem) error
	ListItems(subjectID string) ([]models.MediaItem, error)
}

// Catalog holds one item snapshot per subject. A snapshot is replaced as a
// whole on every refresh and never modified afterwards, so readers always
// see a consistent list.
type Catalog struct {
	backend   Backend
	store     SnapshotStore
	streamURL func(models.ItemID) string

	group singleflight.Group

	mu       sync.RWMutex
	subjects map[string][]models.MediaItem
	index    map[models.ItemID]models.MediaItem
}

type Option func(*Catalog)

func WithSnapshotStore(s SnapshotStore) Option {
	return func(c *Catalog) { c.store = s }
}

// WithStreamURL sets how an item's playback source URL is built.
func WithStreamURL(fn func(models.ItemID) string) Option {
	return func(c *Catalog) { c.streamURL = fn }
}

func New(b Backend, opts ...Option) *Catalog {
	c := &Catalog{
		backend:   b,
		streamURL: DefaultStreamURL,
		subjects:  make(map[string][]models.MediaItem),
		index:     make(map[models.ItemID]models.MediaItem),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultStreamURL points at the service's own stream proxy.
func DefaultStreamURL(id models.ItemID) string {
	return "/api/items/" + url.PathEscape(string(id)) + "/stream"
}

// Refresh fetches the subject's items and swaps in the new snapshot.
// Concurrent refreshes of one subject share a single backend call.
func (c *Catalog) Refresh(ctx context.Context, subjectID string) error {
	_, err, _ := c.group.Do(subjectID, func() (any, error) {
		items, err := c.backend.ListItems(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		c.replace(subjectID, items)
		if c.store != nil {
			if err := c.store.ReplaceItems(subjectID, items); err != nil {
				slog.Warn("persisting catalog snapshot", "subject_id", subjectID, "error", err)
			}
		}
		return nil, nil
	})
	return err
}

// RefreshAll refreshes several subjects in parallel and returns the first
// error. Subjects that succeeded keep their new snapshot.
func (c *Catalog) RefreshAll(ctx context.Context, subjectIDs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range subjectIDs {
		g.Go(func() error {
			if err := c.Refresh(ctx, id); err != nil {
				return fmt.Errorf("subject %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// List returns the subject's snapshot, fetching it on first use. When the
// backend is unreachable the last persisted snapshot is served instead and
// stale is true.
func (c *Catalog) List(ctx context.Context, subjectID string) (items []models.MediaItem, stale bool, err error) {
	if items, ok := c.Items(subjectID); ok {
		return items, false, nil
	}
	if err := c.Refresh(ctx, subjectID); err != nil {
		if c.store != nil {
			persisted, serr := c.store.ListItems(subjectID)
			if serr == nil && len(persisted) > 0 {
				for i := range persisted {
					persisted[i].SubjectID = subjectID
					persisted[i].StreamURL = c.streamURL(persisted[i].ID)
				}
				c.seedIndex(persisted)
				slog.Warn("serving persisted catalog snapshot", "subject_id", subjectID, "error", err)
				return persisted, true, nil
			}
		}
		return nil, false, err
	}
	items, _ = c.Items(subjectID)
	return items, false, nil
}

// Items returns the in-memory snapshot for a subject. The slice must not
// be modified.
func (c *Catalog) Items(subjectID string) ([]models.MediaItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items, ok := c.subjects[subjectID]
	return items, ok
}

func (c *Catalog) Item(id models.ItemID) (models.MediaItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.index[id]
	return item, ok
}

// Source resolves the playback source for an item in a loaded snapshot.
func (c *Catalog) Source(ctx context.Context, id models.ItemID) (playback.Source, error) {
	item, ok := c.Item(id)
	if !ok {
		return playback.Source{}, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	if !item.Playable() {
		return playback.Source{}, fmt.Errorf("item %s (%s): %w", id, item.ContentType, ErrNotPlayable)
	}
	return playback.Source{URL: c.streamURL(id), ContentType: item.ContentType}, nil
}

// Delete removes an item on the backend and refreshes its subject.
func (c *Catalog) Delete(ctx context.Context, id models.ItemID) error {
	item, known := c.Item(id)
	if err := c.backend.DeleteItem(ctx, id); err != nil {
		return err
	}
	if !known {
		return nil
	}
	if err := c.Refresh(ctx, item.SubjectID); err != nil {
		slog.Warn("refreshing catalog after delete", "subject_id", item.SubjectID, "error", err)
	}
	return nil
}

func (c *Catalog) replace(subjectID string, items []models.MediaItem) {
	snapshot := make([]models.MediaItem, len(items))
	copy(snapshot, items)
	for i := range snapshot {
		snapshot[i].SubjectID = subjectID
		snapshot[i].StreamURL = c.streamURL(snapshot[i].ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, old := range c.subjects[subjectID] {
		if cur, ok := c.index[old.ID]; ok && cur.SubjectID == subjectID {
			delete(c.index, old.ID)
		}
	}
	c.subjects[subjectID] = snapshot
	for _, item := range snapshot {
		c.index[item.ID] = item
	}
}

// seedIndex makes persisted items resolvable without marking their subject
// as loaded, so the next List still tries the backend. Items already known
// from a live snapshot win.
func (c *Catalog) seedIndex(items []models.MediaItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		if _, ok := c.index[item.ID]; !ok {
			c.index[item.ID] = item
		}
	}
}
