package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/httpserver"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/records"
	"github.com/MrSnakeDoc/marksync/internal/session"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

type testServer struct {
	srv  *httptest.Server
	jwt  *session.JWT
	hub  *feed.Hub
	recs *records.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Nop()

	jwtSvc, err := session.NewJWT("test-secret-0123456789", session.Options{
		Issuer:   "marksync",
		Audience: "marksync-api",
		TTL:      time.Hour,
	}, session.NewMemoryRevoker())
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}

	hub := feed.NewHub(feed.DefaultBuffer, log)
	recs := records.NewService(memory.NewStore(), hub, log)

	d := deps.Deps{
		Logger:         log,
		StartTime:      time.Now(),
		TimeNow:        time.Now,
		Records:        recs,
		Feed:           hub,
		Sessions:       jwtSvc,
		RateBurst:      100,
		RatePerMin:     6000,
		WSPingInterval: time.Second,
		WSWriteTimeout: time.Second,
	}
	srv := httptest.NewServer(httpserver.NewRouter(log, d))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testServer{srv: srv, jwt: jwtSvc, hub: hub, recs: recs}
}

func (ts *testServer) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := ts.jwt.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"scheme", "ftp://example.com"},
		{"no host", "http://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.url, "tok", nil); err == nil {
				t.Fatalf("New(%q) succeeded", tt.url)
			}
		})
	}
}

func TestClientRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	c, err := New(ts.srv.URL, ts.token(t, "alice"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b, err := c.Insert(ctx, domain.NewBookmark{Title: "Go", URL: "https://go.dev"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if b.ID == "" || b.OwnerID != "alice" {
		t.Fatalf("Insert returned %+v", b)
	}

	list, err := c.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("ListByOwner = %+v", list)
	}

	if err := c.Delete(ctx, "alice", b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ctx, "alice", b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestClientErrors(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	c, _ := New(ts.srv.URL, ts.token(t, "alice"), nil)
	_, err := c.Insert(ctx, domain.NewBookmark{Title: " ", URL: "https://go.dev"})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("Insert err = %v, want ErrInvalid", err)
	}

	anon, _ := New(ts.srv.URL, "", nil)
	_, err = anon.ListByOwner(ctx, "alice")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("anonymous list err = %v, want 401", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	c, _ := New(ts.srv.URL, ts.token(t, "alice"), nil)
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, err := c.ListByOwner(ctx, "alice")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("list after logout err = %v, want 401", err)
	}
}

func TestFeedDeliversOwnChanges(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	f, err := NewFeed(ts.srv.URL, ts.token(t, "alice"), time.Second, 16, logger.Nop())
	if err != nil {
		t.Fatalf("NewFeed: %v", err)
	}
	sub, err := f.Subscribe(ctx, domain.OwnerFilter("alice"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case st := <-sub.Statuses():
		if st != domain.StatusSubscribed {
			t.Fatalf("first status = %q", st)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no subscribed status")
	}

	if _, err := ts.recs.Insert(ctx, domain.NewBookmark{OwnerID: "bob", Title: "B", URL: "https://b.example"}); err != nil {
		t.Fatalf("Insert bob: %v", err)
	}
	mine, err := ts.recs.Insert(ctx, domain.NewBookmark{OwnerID: "alice", Title: "A", URL: "https://a.example"})
	if err != nil {
		t.Fatalf("Insert alice: %v", err)
	}

	select {
	case c := <-sub.Changes():
		if c.Kind != domain.ChangeInsert || c.New == nil || c.New.ID != mine.ID {
			t.Fatalf("change = %+v, want insert of %s", c, mine.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestFeedServerShutdownEndsSubscription(t *testing.T) {
	ts := newTestServer(t)

	f, _ := NewFeed(ts.srv.URL, ts.token(t, "alice"), time.Second, 16, logger.Nop())
	sub, err := f.Subscribe(context.Background(), domain.OwnerFilter("alice"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	<-sub.Statuses()

	waitFor(t, "hub subscriber", func() bool { return ts.hub.Count() == 1 })
	ts.hub.Close()

	select {
	case <-sub.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not end")
	}
	select {
	case st := <-sub.Statuses():
		if st.Connected() {
			t.Fatalf("terminal status = %q", st)
		}
	default:
		t.Fatal("no terminal status")
	}
}

func TestFeedUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	f, _ := NewFeed(ts.srv.URL, "", time.Second, 16, logger.Nop())
	_, err := f.Subscribe(context.Background(), domain.OwnerFilter("alice"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("Subscribe err = %v, want 401", err)
	}
}

func TestFeedHandshakeTimeout(t *testing.T) {
	// Accepts the connection but never answers the upgrade
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	f, _ := NewFeed(srv.URL, "tok", 50*time.Millisecond, 16, logger.Nop())
	sub, err := f.Subscribe(context.Background(), domain.OwnerFilter("alice"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !sub.Closed() {
		t.Fatal("subscription still open after handshake timeout")
	}
	if st := <-sub.Statuses(); st != domain.StatusTimedOut {
		t.Fatalf("status = %q, want %q", st, domain.StatusTimedOut)
	}
}

func TestSyncerOverRemote(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	tok := ts.token(t, "alice")

	c, _ := New(ts.srv.URL, tok, nil)
	f, _ := NewFeed(ts.srv.URL, tok, time.Second, 16, logger.Nop())

	s := syncer.New(c, f, logger.Nop())
	defer s.Close()
	if err := s.Initialize(ctx, "alice"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	waitFor(t, "connected", s.Connected)

	added, err := s.Add(ctx, "Go", "https://go.dev")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// A write from another session shows up through the feed
	other, err := ts.recs.Insert(ctx, domain.NewBookmark{OwnerID: "alice", Title: "Other", URL: "https://other.example"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	waitFor(t, "remote insert", func() bool { return len(s.Items()) == 2 })

	items := s.Items()
	if items[0].ID != other.ID || items[1].ID != added.ID {
		t.Fatalf("items = %v, want [%s %s]", items, other.ID, added.ID)
	}

	if err := s.Remove(ctx, added.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n := len(s.Items()); n != 1 {
		t.Fatalf("len(items) after Remove = %d, want 1", n)
	}
}
