package playback

import (
	"context"
	"time"

	"lectern/internal/models"
)

// Event is a media lifecycle signal emitted by a Surface.
type Event string

const (
	EventError   Event = "error"
	EventCanPlay Event = "canplay"
	EventWaiting Event = "waiting"
	EventPlaying Event = "playing"
)

// sessionEvents are the listeners every accepted play registers.
var sessionEvents = []Event{EventError, EventCanPlay, EventWaiting, EventPlaying}

// Surface is a renderable media element owned by one item. Implementations
// must be comparable (pointer receivers) and must not invoke listeners
// synchronously from inside any of these methods. The controller calls
// every method except Play with its lock held, so they must not block.
type Surface interface {
	// On registers fn for ev and returns a func that removes it.
	On(ev Event, fn func(err error)) (remove func())
	SetSource(url, contentType string)
	ClearSource()
	// Load resets the element and (re)loads whatever source is set,
	// dropping buffered data from a previous occupant.
	Load()
	// Play starts playback. A non-nil error means the element refused.
	Play(ctx context.Context) error
	Pause()
	Seek(pos time.Duration)
}

type Source struct {
	URL         string
	ContentType string
}

// SourceResolver maps an item to the stream its surface should load.
type SourceResolver interface {
	Source(ctx context.Context, id models.ItemID) (Source, error)
}
