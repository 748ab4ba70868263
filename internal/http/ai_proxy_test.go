package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAIProxy_ChatRelay(t *testing.T) {
	var gotUserID int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("upstream path = %q, want /chat", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode upstream body: %v", err)
		}
		gotUserID = req.UserID

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: hello\n\ndata: world\n\n")
	}))
	defer upstream.Close()

	env := newTestEnv(t)
	env.server.aiProxy = NewAIProxy(upstream.URL, 3*time.Second)
	// Rebuild routes with the proxy wired in.
	srv := NewServer(":0", env.jwt, env.server.authService, env.server.userService, env.server.reports, env.server.aiProxy)
	t.Cleanup(srv.rateLimiter.stop)
	env.server = srv

	user, token := env.newUser(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/ai/chat", token, map[string]any{
		"message": "how is my cash flow?",
		// A spoofed user id must be overwritten with the authenticated one.
		"user_id": 424242,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if !strings.Contains(rec.Body.String(), "data: hello") {
		t.Errorf("body = %q, want relayed stream", rec.Body.String())
	}
	if gotUserID != user.ID {
		t.Errorf("upstream user_id = %d, want %d", gotUserID, user.ID)
	}
}

func TestAIProxy_UpstreamFailureBecomesSSEError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	env := newTestEnv(t)
	srv := NewServer(":0", env.jwt, env.server.authService, env.server.userService, env.server.reports, NewAIProxy(upstream.URL, 3*time.Second))
	t.Cleanup(srv.rateLimiter.stop)
	env.server = srv
	_, token := env.newUser(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/ai/chat", token, map[string]any{"message": "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, want 200 with SSE error event", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "event: error") {
		t.Errorf("body = %q, want terminal error event", rec.Body.String())
	}
}

func TestAIProxy_Health(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	env := newTestEnv(t)
	srv := NewServer(":0", env.jwt, env.server.authService, env.server.userService, env.server.reports, NewAIProxy(upstream.URL, 1*time.Second))
	t.Cleanup(srv.rateLimiter.stop)
	env.server = srv
	_, token := env.newUser(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/ai/health", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("status = %q, want ok", got["status"])
	}

	// Health never fails, it reports offline.
	upstream.Close()
	rec = env.do(t, http.MethodGet, "/api/ai/health", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status after upstream down = %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec); got["status"] != "offline" {
		t.Errorf("status = %q, want offline", got["status"])
	}
}
