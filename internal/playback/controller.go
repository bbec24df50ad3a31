package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lectern/internal/models"
)

const (
	DefaultMountTimeout = 2 * time.Second
	DefaultStartTimeout = 10 * time.Second
)

// ErrSuperseded is returned by PlayItem when the request was stopped or
// replaced by a newer one before it finished binding its surface.
var ErrSuperseded = errors.New("play request superseded")

var errSurfaceDetached = errors.New("surface detached")

type session struct {
	id       models.ItemID
	gen      uint64
	surface  Surface
	state    State
	starting bool
}

// Controller enforces that at most one item occupies a media surface at a
// time. Transitions are strictly sequential: the previous session is fully
// stopped before the next one binds anything.
type Controller struct {
	mounts       *MountTable
	registry     *Registry
	loading      *LoadingTracker
	sources      SourceResolver
	mountTimeout time.Duration
	startTimeout time.Duration
	onError      func(error)

	mu     sync.Mutex
	gen    uint64
	active *session

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}
}

type Option func(*Controller)

func WithMountTimeout(d time.Duration) Option {
	return func(c *Controller) { c.mountTimeout = d }
}

func WithStartTimeout(d time.Duration) Option {
	return func(c *Controller) { c.startTimeout = d }
}

// WithErrorHandler sets where playback failures are reported. The handler
// runs with the controller locked and must not call back into it.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

func NewController(mounts *MountTable, sources SourceResolver, opts ...Option) *Controller {
	c := &Controller{
		mounts:       mounts,
		registry:     NewRegistry(),
		loading:      NewLoadingTracker(),
		sources:      sources,
		mountTimeout: DefaultMountTimeout,
		startTimeout: DefaultStartTimeout,
		subscribers:  make(map[chan Snapshot]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.onError == nil {
		c.onError = func(err error) {
			slog.Warn("playback failed", "error", err)
		}
	}
	return c
}

// PlayItem makes id the active session. A repeated call for an item that
// is already active is coalesced into the running session.
func (c *Controller) PlayItem(ctx context.Context, id models.ItemID) error {
	c.mu.Lock()
	if c.active != nil && c.active.id == id {
		c.mu.Unlock()
		return nil
	}
	if c.active != nil {
		c.stopLocked(c.active.id)
	}
	c.gen++
	sess := &session{id: id, gen: c.gen}
	c.active = sess
	c.loading.SetLoading(id, true)
	c.transitionLocked(sess, StateSourceSwapping, nil)
	c.mu.Unlock()

	src, err := c.sources.Source(ctx, id)
	if err != nil {
		return c.fail(sess, "resolve", err)
	}
	surface, err := c.mounts.Await(ctx, id, c.mountTimeout)
	if err != nil {
		return c.fail(sess, "mount", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(sess) {
		return ErrSuperseded
	}
	// The surface may have been detached while the lock was released.
	if cur, ok := c.mounts.Lookup(id); !ok || cur != surface {
		return c.failLocked(sess, "mount", ErrNotMounted)
	}
	if err := c.registry.Bind(id, surface); err != nil {
		return c.failLocked(sess, "bind", err)
	}
	sess.surface = surface

	surface.ClearSource()
	surface.Load()

	gen := sess.gen
	for _, ev := range sessionEvents {
		if err := c.registry.Listen(id, ev, func(err error) { c.handleEvent(id, gen, ev, err) }); err != nil {
			return c.failLocked(sess, "bind", err)
		}
	}

	surface.SetSource(src.URL, src.ContentType)
	c.transitionLocked(sess, StateLoading, nil)
	surface.Load()
	return nil
}

// StopItem releases everything id holds. Calling it for an idle item, or
// twice in a row, leaves the same state as calling it once.
func (c *Controller) StopItem(id models.ItemID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(id)
}

// Unmount is called by the view layer when id's surface goes away. An
// active session on that surface is stopped.
func (c *Controller) Unmount(id models.ItemID, s Surface) {
	c.mounts.Detach(id, s)

	c.mu.Lock()
	defer c.mu.Unlock()
	bound, ok := c.registry.Surface(id)
	if !ok || bound != s {
		return
	}
	if c.active != nil && c.active.id == id {
		c.failLocked(c.active, "unmount", errSurfaceDetached)
		return
	}
	c.registry.UnbindAll(id)
}

func (c *Controller) IsLoading(id models.ItemID) bool {
	return c.loading.IsLoading(id)
}

// CurrentlyPlaying returns the item holding the exclusive session, if any.
func (c *Controller) CurrentlyPlaying() (models.ItemID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.id, true
}

func (c *Controller) State(id models.ItemID) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.id != id {
		return StateIdle
	}
	return c.active.state
}

// Current describes the active session, or an idle snapshot when there is none.
func (c *Controller) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Snapshot{State: StateIdle}
	}
	return Snapshot{
		ItemID:  c.active.id,
		State:   c.active.state,
		Loading: c.loading.IsLoading(c.active.id),
	}
}

func (c *Controller) stopLocked(id models.ItemID) {
	surface, bound := c.registry.Surface(id)
	c.registry.UnbindAll(id)
	if bound {
		surface.Pause()
		surface.Seek(0)
		surface.ClearSource()
		surface.Load()
	}
	c.loading.SetLoading(id, false)

	if c.active != nil && c.active.id == id {
		sess := c.active
		c.active = nil
		c.transitionLocked(sess, StateStopped, nil)
		c.transitionLocked(sess, StateIdle, nil)
	}
}

// handleEvent runs for every surface event. Listeners carry the generation
// of the session that registered them; a mismatch means the session was
// stopped or superseded and the event is dropped.
func (c *Controller) handleEvent(id models.ItemID, gen uint64, ev Event, evErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.active
	if sess == nil || sess.id != id || sess.gen != gen {
		return
	}

	switch ev {
	case EventCanPlay:
		if sess.state != StateLoading || sess.starting {
			return
		}
		sess.starting = true
		surface := sess.surface

		c.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), c.startTimeout)
		err := surface.Play(ctx)
		cancel()
		c.mu.Lock()

		if !c.isCurrentLocked(sess) {
			return
		}
		sess.starting = false
		if err != nil {
			c.failLocked(sess, "start", err)
			return
		}
		c.loading.SetLoading(id, false)
		c.transitionLocked(sess, StatePlaying, nil)

	case EventWaiting:
		c.loading.SetLoading(id, true)
		if sess.state == StatePlaying {
			c.transitionLocked(sess, StateWaiting, nil)
		}

	case EventPlaying:
		c.loading.SetLoading(id, false)
		if sess.state == StateWaiting || sess.state == StateLoading {
			c.transitionLocked(sess, StatePlaying, nil)
		}

	case EventError:
		if evErr == nil {
			evErr = errors.New("media error")
		}
		c.failLocked(sess, "decode", evErr)
	}
}

func (c *Controller) fail(sess *session, op string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(sess) {
		return ErrSuperseded
	}
	return c.failLocked(sess, op, err)
}

// failLocked reports err and returns sess's item to Idle with no listeners
// and no loading flag left behind.
func (c *Controller) failLocked(sess *session, op string, err error) error {
	perr := &models.PlaybackError{ItemID: sess.id, Op: op, Err: err}
	c.registry.UnbindAll(sess.id)
	c.loading.SetLoading(sess.id, false)
	if c.active == sess {
		c.active = nil
	}
	c.transitionLocked(sess, StateErrored, perr)
	c.transitionLocked(sess, StateIdle, nil)
	c.onError(perr)
	return perr
}

func (c *Controller) isCurrentLocked(sess *session) bool {
	return c.active == sess
}

func (c *Controller) transitionLocked(sess *session, st State, err error) {
	sess.state = st
	snap := Snapshot{ItemID: sess.id, State: st, Loading: c.loading.IsLoading(sess.id)}
	if err != nil {
		snap.Error = err.Error()
	}
	c.publish(snap)
}
