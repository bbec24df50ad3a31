package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/models"
	"lectern/internal/playback"
)

const waitFor = 2 * time.Second

func TestPlayAndStop(t *testing.T) {
	env := newTestEnv(t)
	env.loadSubject(t)
	env.mounts.Attach("1", &stillSurface{})

	w := env.do(t, http.MethodPost, "/api/playback/play", playbackRequest{ItemID: "1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeJSON[playback.Snapshot](t, w)
	assert.Equal(t, models.ItemID("1"), snap.ItemID)
	assert.Equal(t, playback.StateLoading, snap.State)
	assert.True(t, snap.Loading)

	w = env.do(t, http.MethodGet, "/api/playback/items/1", nil)
	item := decodeJSON[itemPlayback](t, w)
	assert.Equal(t, playback.StateLoading, item.State)
	assert.True(t, item.Loading)

	w = env.do(t, http.MethodPost, "/api/playback/stop", playbackRequest{ItemID: "1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, playback.StateIdle, decodeJSON[playback.Snapshot](t, w).State)

	w = env.do(t, http.MethodPost, "/api/playback/stop", playbackRequest{ItemID: "1"})
	require.Equal(t, http.StatusOK, w.Code, "stop is idempotent")

	w = env.do(t, http.MethodGet, "/api/playback", nil)
	assert.Equal(t, playback.Snapshot{State: playback.StateIdle}, decodeJSON[playback.Snapshot](t, w))
}

func TestPlayErrors(t *testing.T) {
	env := newTestEnv(t)
	env.loadSubject(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing item id", map[string]string{}, http.StatusBadRequest},
		{"unknown item", playbackRequest{ItemID: "99"}, http.StatusNotFound},
		{"not playable", playbackRequest{ItemID: "2"}, http.StatusUnprocessableEntity},
		{"surface never mounts", playbackRequest{ItemID: "1"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/playback/play", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.False(t, env.controller.IsLoading("1"), "no orphaned loading flag")
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/playback/play", strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func readCmd(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitFor))
	var cmd map[string]any
	require.NoError(t, conn.ReadJSON(&cmd))
	return cmd
}

func TestPlaybackOverSurfaceSocket(t *testing.T) {
	env := newTestEnv(t)
	env.loadSubject(t)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/items/1/surface"), nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := http.Post(ts.URL+"/api/playback/play", "application/json", strings.NewReader(`{"item_id":"1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "clear_source", readCmd(t, conn)["cmd"])
	assert.Equal(t, "load", readCmd(t, conn)["cmd"])
	src := readCmd(t, conn)
	assert.Equal(t, "set_source", src["cmd"])
	assert.Equal(t, "/api/items/1/stream", src["url"])
	assert.Equal(t, "video/mp4", src["content_type"])
	assert.Equal(t, "load", readCmd(t, conn)["cmd"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "canplay"}))
	play := readCmd(t, conn)
	require.Equal(t, "play", play["cmd"])
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "play_result", "seq": play["seq"]}))

	require.Eventually(t, func() bool {
		return env.controller.State("1") == playback.StatePlaying
	}, waitFor, 10*time.Millisecond)
	assert.False(t, env.controller.IsLoading("1"))

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "waiting"}))
	require.Eventually(t, func() bool {
		return env.controller.State("1") == playback.StateWaiting && env.controller.IsLoading("1")
	}, waitFor, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		_, active := env.controller.CurrentlyPlaying()
		return !active
	}, waitFor, 10*time.Millisecond, "closing the socket unmounts the surface")
	assert.False(t, env.controller.IsLoading("1"))
}

func TestPlaybackEventsStream(t *testing.T) {
	env := newTestEnv(t)
	env.loadSubject(t)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/playback/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan playback.Snapshot, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Bytes()
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			var snap playback.Snapshot
			if json.Unmarshal(line[len("data: "):], &snap) == nil {
				events <- snap
			}
		}
	}()

	next := func() playback.Snapshot {
		t.Helper()
		select {
		case s := <-events:
			return s
		case <-time.After(waitFor):
			t.Fatal("no event")
			return playback.Snapshot{}
		}
	}

	assert.Equal(t, playback.StateIdle, next().State, "stream opens with the current snapshot")

	env.mounts.Attach("1", &stillSurface{})
	require.NoError(t, env.controller.PlayItem(context.Background(), "1"))
	assert.Equal(t, playback.StateSourceSwapping, next().State)
	assert.Equal(t, playback.StateLoading, next().State)

	env.controller.StopItem("1")
	assert.Equal(t, playback.StateStopped, next().State)
	assert.Equal(t, playback.StateIdle, next().State)
}
