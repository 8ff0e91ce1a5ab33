package watch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/records"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
	"github.com/MrSnakeDoc/marksync/internal/undo"
)

type fixture struct {
	console *Console
	hook    *syncer.Syncer
	recs    *records.Service
	out     *bytes.Buffer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	log := logger.Nop()
	hub := feed.NewHub(feed.DefaultBuffer, log)
	recs := records.NewService(memory.NewStore(), hub, log)

	hook := syncer.New(recs, hub, log)
	t.Cleanup(hook.Close)
	if err := hook.Initialize(context.Background(), "alice"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for !hook.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("hook never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	out := &bytes.Buffer{}
	return &fixture{
		console: New(hook, undo.NewManager(time.Minute), out, opts),
		hook:    hook,
		recs:    recs,
		out:     out,
	}
}

func (f *fixture) exec(t *testing.T, line string) {
	t.Helper()
	if err := f.console.Exec(context.Background(), line); err != nil {
		t.Fatalf("Exec(%q): %v", line, err)
	}
}

func TestAddQuotedTitle(t *testing.T) {
	f := newFixture(t, Options{})
	f.exec(t, `add "Go dev" https://go.dev`)

	items := f.hook.Items()
	if len(items) != 1 || items[0].Title != "Go dev" || items[0].URL != "https://go.dev" {
		t.Fatalf("items = %+v", items)
	}
	if !strings.Contains(f.out.String(), undo.AddedNotice.Message) {
		t.Fatalf("output %q lacks added notice", f.out.String())
	}
}

func TestRemoveByPositionAndUndo(t *testing.T) {
	f := newFixture(t, Options{})
	f.exec(t, "add Go https://go.dev")
	f.exec(t, "add Chi https://go-chi.io")

	// Newest first: position 1 is Chi
	f.exec(t, "rm 1")
	items := f.hook.Items()
	if len(items) != 1 || items[0].Title != "Go" {
		t.Fatalf("items after rm = %+v", items)
	}
	if !strings.Contains(f.out.String(), "type undo") {
		t.Fatalf("output %q lacks undo hint", f.out.String())
	}

	f.exec(t, "undo")
	items = f.hook.Items()
	if len(items) != 2 || items[0].Title != "Chi" {
		t.Fatalf("items after undo = %+v", items)
	}

	err := f.console.Exec(context.Background(), "undo")
	if !errors.Is(err, undo.ErrNothingToUndo) {
		t.Fatalf("second undo err = %v, want ErrNothingToUndo", err)
	}
}

func TestRemoveByID(t *testing.T) {
	f := newFixture(t, Options{})
	f.exec(t, "add Go https://go.dev")
	id := f.hook.Items()[0].ID

	f.exec(t, "rm "+id)
	if n := len(f.hook.Items()); n != 0 {
		t.Fatalf("len(items) = %d, want 0", n)
	}
}

func TestExecErrors(t *testing.T) {
	f := newFixture(t, Options{})
	tests := []struct {
		line string
		want string
	}{
		{"add onlytitle", "usage: add"},
		{"rm", "usage: rm"},
		{"rm 3", "no bookmark at position 3"},
		{"rm nope", `no bookmark with id "nope"`},
		{"frobnicate", "unknown command"},
		{`add "unterminated`, "failed to parse command"},
		{"logout", "not available"},
		{`add " " https://go.dev`, domain.ErrInvalid.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := f.console.Exec(context.Background(), tt.line)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Exec(%q) err = %v, want mention of %q", tt.line, err, tt.want)
			}
		})
	}
}

func TestQuitAndBlank(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.console.Exec(context.Background(), "   "); err != nil {
		t.Fatalf("blank line err = %v", err)
	}
	for _, cmd := range []string{"quit", "exit", "q"} {
		if err := f.console.Exec(context.Background(), cmd); !errors.Is(err, ErrQuit) {
			t.Fatalf("Exec(%q) err = %v, want ErrQuit", cmd, err)
		}
	}
}

func TestLogout(t *testing.T) {
	called := 0
	f := newFixture(t, Options{Logout: func(context.Context) error {
		called++
		return nil
	}})
	if err := f.console.Exec(context.Background(), "logout"); !errors.Is(err, ErrQuit) {
		t.Fatalf("logout err = %v, want ErrQuit", err)
	}
	if called != 1 {
		t.Fatalf("logout called %d times", called)
	}
}

func TestRender(t *testing.T) {
	f := newFixture(t, Options{})
	f.console.Render()
	if !strings.Contains(f.out.String(), "no bookmarks yet") {
		t.Fatalf("empty render = %q", f.out.String())
	}

	f.out.Reset()
	f.exec(t, "add Go https://go.dev")
	f.out.Reset()
	f.console.Render()
	got := f.out.String()
	for _, want := range []string{"bookmarks for alice (1) [live]", "1. Go  https://go.dev", "(now)"} {
		if !strings.Contains(got, want) {
			t.Errorf("render %q lacks %q", got, want)
		}
	}

	f.hook.Close()
	f.out.Reset()
	f.console.Render()
	if got := f.out.String(); got != "signed out\n" {
		t.Fatalf("render after close = %q", got)
	}
}

func TestRunProcessesInput(t *testing.T) {
	f := newFixture(t, Options{})
	in := strings.NewReader("add Go https://go.dev\nls\nquit\nadd Never https://never.example\n")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := f.console.Run(ctx, in); err != nil {
		t.Fatalf("Run: %v", err)
	}

	items := f.hook.Items()
	if len(items) != 1 || items[0].Title != "Go" {
		t.Fatalf("items = %+v, want only Go", items)
	}
}

func TestRunShowsRemoteChanges(t *testing.T) {
	f := newFixture(t, Options{Live: true})
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.console.Run(ctx, in) }()

	if _, err := f.recs.Insert(context.Background(), domain.NewBookmark{OwnerID: "alice", Title: "Remote", URL: "https://remote.example"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(f.hook.Items()) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("remote insert never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
