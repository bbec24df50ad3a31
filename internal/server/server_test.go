package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeJSON[map[string]string](t, w)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestHealthEndpointStoreClosed(t *testing.T) {
	env := newTestEnv(t)
	env.store.Close()

	w := env.do(t, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	srv := NewServer(env.store, WithCORSOrigin("https://portal.example.edu"),
		WithPlayback(env.controller, env.mounts), WithCatalog(env.catalog, nil), WithUploads(env.uploads))
	defer srv.Close()

	req := httptest.NewRequest(http.MethodOptions, "/api/playback/play", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.edu" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	srv := &Server{corsOrigin: "https://portal.example.edu"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://portal.example.edu", true},
		{"http://lectern.local", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "http://lectern.local/api/items/1/surface", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := srv.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients are unaffected")
	}
	rl.stop()
}

func TestIsValidPathSegment(t *testing.T) {
	for _, s := range []string{"1", "lecture-7", "a.b"} {
		if !isValidPathSegment(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "..", "a/b", "a?b", "a#b"} {
		if isValidPathSegment(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
