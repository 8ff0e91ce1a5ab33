package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/records"
	"github.com/MrSnakeDoc/marksync/internal/session"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
)

func testDeps(t *testing.T) (deps.Deps, *session.JWT) {
	t.Helper()
	log := logger.New("error", false)

	jwtSvc, err := session.NewJWT("test-secret-0123456789", session.Options{TTL: time.Hour}, session.NewMemoryRevoker())
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	hub := feed.NewHub(feed.DefaultBuffer, log)
	t.Cleanup(hub.Close)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return deps.Deps{
		Logger:         log,
		StartTime:      start,
		Version:        "v1.2.3",
		TimeNow:        func() time.Time { return start.Add(90 * time.Second) },
		Records:        records.NewService(memory.NewStore(), hub, log),
		Feed:           hub,
		Sessions:       jwtSvc,
		RateBurst:      100,
		RatePerMin:     6000,
		WSPingInterval: time.Second,
		WSWriteTimeout: time.Second,
	}, jwtSvc
}

func serve(h http.Handler, method, target string, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	d, _ := testDeps(t)
	rec := serve(NewRouter(d.Logger, d), http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var body struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Version       string  `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.UptimeSeconds != 90 || body.Version != "v1.2.3" {
		t.Fatalf("body = %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]deps.Check
		wantCode int
	}{
		{name: "no checks", wantCode: http.StatusOK},
		{name: "all ok", checks: map[string]deps.Check{"redis": func(context.Context) error { return nil }}, wantCode: http.StatusOK},
		{name: "one down", checks: map[string]deps.Check{
			"redis":    func(context.Context) error { return nil },
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		}, wantCode: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := testDeps(t)
			d.Checks = tt.checks
			rec := serve(NewRouter(d.Logger, d), http.MethodGet, "/readyz", nil, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
		})
	}
}

func TestReload(t *testing.T) {
	d, _ := testDeps(t)
	if rec := serve(NewRouter(d.Logger, d), http.MethodPost, "/reload", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled reload code = %d, want 404", rec.Code)
	}

	d.ReloadTrigger = make(chan struct{}, 1)
	r := NewRouter(d.Logger, d)
	if rec := serve(r, http.MethodPost, "/reload", nil, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("first reload code = %d, want 202", rec.Code)
	}
	if rec := serve(r, http.MethodPost, "/reload", nil, ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second reload code = %d, want 429", rec.Code)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	d, _ := testDeps(t)
	rec := serve(NewRouter(d.Logger, d), http.MethodGet, "/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"not found"`) {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestBookmarkRoutes(t *testing.T) {
	d, jwtSvc := testDeps(t)
	r := NewRouter(d.Logger, d)
	alice, _ := jwtSvc.Issue("alice")
	bob, _ := jwtSvc.Issue("bob")

	if rec := serve(r, http.MethodGet, "/api/bookmarks", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list code = %d, want 401", rec.Code)
	}

	rec := serve(r, http.MethodPost, "/api/bookmarks", []byte(`{"title":"Go","url":"https://go.dev","user_id":"bob"}`), alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %d: %s", rec.Code, rec.Body)
	}
	var created domain.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.OwnerID != "alice" {
		t.Fatalf("owner = %q, want alice", created.OwnerID)
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		token  string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/bookmarks", "{", alice, http.StatusBadRequest},
		{"blank title", http.MethodPost, "/api/bookmarks", `{"title":"","url":"https://x"}`, alice, http.StatusBadRequest},
		{"delete by other owner", http.MethodDelete, "/api/bookmarks/" + created.ID, "", bob, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/bookmarks/nope", "", alice, http.StatusNotFound},
		{"delete own", http.MethodDelete, "/api/bookmarks/" + created.ID, "", alice, http.StatusNoContent},
		{"delete again", http.MethodDelete, "/api/bookmarks/" + created.ID, "", alice, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.body != "" {
				body = []byte(tt.body)
			}
			if rec := serve(r, tt.method, tt.target, body, tt.token); rec.Code != tt.want {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestLogoutRevokes(t *testing.T) {
	d, jwtSvc := testDeps(t)
	r := NewRouter(d.Logger, d)
	tok, _ := jwtSvc.Issue("alice")

	if rec := serve(r, http.MethodPost, "/auth/logout", nil, tok); rec.Code != http.StatusNoContent {
		t.Fatalf("logout code = %d", rec.Code)
	}
	if rec := serve(r, http.MethodGet, "/api/bookmarks", nil, tok); rec.Code != http.StatusUnauthorized {
		t.Fatalf("list after logout code = %d, want 401", rec.Code)
	}
}

func TestFeedQueryToken(t *testing.T) {
	d, jwtSvc := testDeps(t)
	srv := httptest.NewServer(NewRouter(d.Logger, d))
	defer srv.Close()
	tok, _ := jwtSvc.Issue("alice")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/bookmarks/feed?access_token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var fr feed.Frame
	if err := conn.ReadJSON(&fr); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if fr.Type != feed.FrameStatus || fr.Status != domain.StatusSubscribed {
		t.Fatalf("first frame = %+v", fr)
	}

	b, err := d.Records.Insert(context.Background(), domain.NewBookmark{OwnerID: "alice", Title: "Go", URL: "https://go.dev"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	fr = feed.Frame{}
	if err := conn.ReadJSON(&fr); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if fr.Type != feed.FrameChange || fr.Change == nil || fr.Change.Kind != domain.ChangeInsert || fr.Change.New.ID != b.ID {
		t.Fatalf("change frame = %+v", fr)
	}
}
