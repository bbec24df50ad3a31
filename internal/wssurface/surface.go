// Package wssurface drives a browser media element over a websocket. The
// browser opens the socket once the element is in the DOM, which is what
// mounts the item's surface for the playback controller.
package wssurface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"lectern/internal/playback"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = 10 * time.Second
	outBuffer    = 16
	maxMessage   = 4096
)

var (
	ErrClosed       = errors.New("surface closed")
	ErrPlayRejected = errors.New("play rejected")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Surface is a playback.Surface backed by one websocket connection.
// Listeners run on a dedicated goroutine in the order the browser sent the
// events, never from inside a Surface method.
type Surface struct {
	id   string
	conn *websocket.Conn
	out  chan command
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	nextID    uint64
	listeners map[playback.Event]map[uint64]func(error)
	seq       uint64
	pending   map[uint64]chan error
	queue     []message
	wake      chan struct{}
}

// Upgrade accepts the websocket handshake. checkOrigin may be nil to use
// the same-origin check of gorilla/websocket.
func Upgrade(w http.ResponseWriter, r *http.Request, checkOrigin func(*http.Request) bool) (*Surface, error) {
	u := upgrader
	u.CheckOrigin = checkOrigin
	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSurface(conn), nil
}

func newSurface(conn *websocket.Conn) *Surface {
	return &Surface{
		id:        uuid.NewString(),
		conn:      conn,
		out:       make(chan command, outBuffer),
		done:      make(chan struct{}),
		listeners: make(map[playback.Event]map[uint64]func(error)),
		pending:   make(map[uint64]chan error),
		wake:      make(chan struct{}, 1),
	}
}

// ID identifies the connection in logs.
func (s *Surface) ID() string { return s.id }

// Done is closed once the connection has gone away.
func (s *Surface) Done() <-chan struct{} { return s.done }

// Run pumps the connection until the browser disconnects or ctx ends.
func (s *Surface) Run(ctx context.Context) error {
	defer s.shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop() })
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.dispatchLoop(gctx) })
	err := g.Wait()
	if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

func (s *Surface) shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Surface) On(ev playback.Event, fn func(error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	key := s.nextID
	if s.listeners[ev] == nil {
		s.listeners[ev] = make(map[uint64]func(error))
	}
	s.listeners[ev][key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[ev], key)
	}
}

func (s *Surface) SetSource(url, contentType string) {
	s.send(command{Cmd: cmdSetSource, URL: url, ContentType: contentType})
}

func (s *Surface) ClearSource() { s.send(command{Cmd: cmdClearSource}) }

func (s *Surface) Load() { s.send(command{Cmd: cmdLoad}) }

func (s *Surface) Pause() { s.send(command{Cmd: cmdPause}) }

func (s *Surface) Seek(pos time.Duration) {
	s.send(command{Cmd: cmdSeek, PositionMS: pos.Milliseconds()})
}

// Play asks the element to start and waits for the browser's answer.
func (s *Surface) Play(ctx context.Context) error {
	ch := make(chan error, 1)
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.pending[seq] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, seq)
		s.mu.Unlock()
	}()

	if !s.send(command{Cmd: cmdPlay, Seq: seq}) {
		return ErrClosed
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// send queues cmd for the write loop without blocking. A browser that
// lets outBuffer commands pile up has stopped reading, so the connection
// is dropped and the surface unmounts. It reports false when the
// connection is gone.
func (s *Surface) send(cmd command) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- cmd:
		return true
	default:
		slog.Warn("media surface not reading, closing", "surface", s.id, "cmd", cmd.Cmd)
		s.shutdown()
		return false
	}
}

func (s *Surface) readLoop() error {
	s.conn.SetReadLimit(maxMessage)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("surface sent malformed message", "surface", s.id, "error", err)
			continue
		}
		if msg.Event == eventPlayResult {
			s.resolvePlay(msg)
			continue
		}
		if _, ok := mediaEvent(msg.Event); !ok {
			slog.Debug("surface sent unknown event", "surface", s.id, "event", msg.Event)
			continue
		}
		s.mu.Lock()
		s.queue = append(s.queue, msg)
		s.mu.Unlock()
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

func (s *Surface) resolvePlay(msg message) {
	s.mu.Lock()
	ch, ok := s.pending[msg.Seq]
	delete(s.pending, msg.Seq)
	s.mu.Unlock()
	if !ok {
		return
	}
	if msg.Message != "" {
		ch <- fmt.Errorf("%w: %s", ErrPlayRejected, msg.Message)
		return
	}
	ch <- nil
}

func (s *Surface) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			s.shutdown()
			return ctx.Err()
		case cmd := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(cmd); err != nil {
				s.shutdown()
				return err
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.shutdown()
				return err
			}
		}
	}
}

// dispatchLoop delivers queued events. A listener may call Play, whose
// answer arrives through readLoop, so listeners never run on the reader.
func (s *Surface) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			msg := s.queue[0]
			s.queue = s.queue[1:]
			ev, _ := mediaEvent(msg.Event)
			fns := make([]func(error), 0, len(s.listeners[ev]))
			for _, fn := range s.listeners[ev] {
				fns = append(fns, fn)
			}
			s.mu.Unlock()

			var err error
			if ev == playback.EventError && msg.Message != "" {
				err = errors.New(msg.Message)
			}
			for _, fn := range fns {
				fn(err)
			}
		}
	}
}
