package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"lectern/internal/models"
)

type listener struct {
	ev Event
	fn func(error)
}

// fakeSurface records every command and keeps every listener it was ever
// given, so tests can replay events a real element might deliver late.
type fakeSurface struct {
	mu          sync.Mutex
	next        int
	live        map[int]listener
	all         []listener
	source      string
	contentType string
	calls       []string
	playErr     error
	position    time.Duration
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{live: make(map[int]listener)}
}

func (f *fakeSurface) On(ev Event, fn func(error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	l := listener{ev: ev, fn: fn}
	f.live[id] = l
	f.all = append(f.all, l)
	return func() {
		f.mu.Lock()
		delete(f.live, id)
		f.mu.Unlock()
	}
}

func (f *fakeSurface) SetSource(url, contentType string) {
	f.record("set_source")
	f.mu.Lock()
	f.source, f.contentType = url, contentType
	f.mu.Unlock()
}

func (f *fakeSurface) ClearSource() {
	f.record("clear_source")
	f.mu.Lock()
	f.source, f.contentType = "", ""
	f.mu.Unlock()
}

func (f *fakeSurface) Load()  { f.record("load") }
func (f *fakeSurface) Pause() { f.record("pause") }

func (f *fakeSurface) Seek(pos time.Duration) {
	f.record("seek")
	f.mu.Lock()
	f.position = pos
	f.mu.Unlock()
}

func (f *fakeSurface) Play(ctx context.Context) error {
	f.record("play")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playErr
}

func (f *fakeSurface) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSurface) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSurface) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeSurface) LiveListeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// fire delivers ev to the listeners currently registered.
func (f *fakeSurface) fire(ev Event, err error) {
	f.mu.Lock()
	var fns []func(error)
	for _, l := range f.live {
		if l.ev == ev {
			fns = append(fns, l.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// fireStale delivers ev to every listener ever registered, removed or not.
func (f *fakeSurface) fireStale(ev Event, err error) {
	f.mu.Lock()
	var fns []func(error)
	for _, l := range f.all {
		if l.ev == ev {
			fns = append(fns, l.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

type staticSources map[models.ItemID]Source

func (s staticSources) Source(ctx context.Context, id models.ItemID) (Source, error) {
	src, ok := s[id]
	if !ok {
		return Source{}, models.ErrNotFound
	}
	return src, nil
}

type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) record(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *errorLog) Errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

var errRejected = errors.New("play() rejected")
