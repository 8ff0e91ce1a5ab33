package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
)

var errBoom = errors.New("boom")

// fakeStore is an in-memory RecordStore whose calls can be gated.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string][]domain.Bookmark
	nextID  func() (string, time.Time)
	listErr error
	addErr  error
	delErr  error

	listGate chan struct{}
	addGate  chan struct{}
	delGate  chan struct{}

	listCalls int
	addCalls  int
	delCalls  int
	lastAdd   domain.NewBookmark
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]domain.Bookmark)}
}

func (f *fakeStore) seed(rows ...domain.Bookmark) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range rows {
		f.rows[b.OwnerID] = append(f.rows[b.OwnerID], b)
	}
}

func (f *fakeStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	f.mu.Lock()
	f.listCalls++
	gate, err := f.listGate, f.listErr
	rows := append([]domain.Bookmark(nil), f.rows[ownerID]...)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *fakeStore) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	f.mu.Lock()
	f.addCalls++
	f.lastAdd = nb
	gate, err, next := f.addGate, f.addErr, f.nextID
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Bookmark{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Bookmark{}, err
	}
	id, at := next()
	b := domain.Bookmark{ID: id, Title: nb.Title, URL: nb.URL, OwnerID: nb.OwnerID, CreatedAt: at}

	f.mu.Lock()
	f.rows[nb.OwnerID] = append(f.rows[nb.OwnerID], b)
	f.mu.Unlock()
	return b, nil
}

func (f *fakeStore) Delete(ctx context.Context, ownerID, id string) error {
	f.mu.Lock()
	f.delCalls++
	gate, err := f.delGate, f.delErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows[ownerID]
	for i, b := range rows {
		if b.ID == id {
			f.rows[ownerID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) calls() (list, add, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.addCalls, f.delCalls
}

// fakeFeed hands out subscriptions and counts how often each is released.
type fakeFeed struct {
	mu     sync.Mutex
	subs   []*feed.Subscription
	closes []int
	err    error
}

func (f *fakeFeed) Subscribe(_ context.Context, filter domain.Filter) (*feed.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.subs)
	f.closes = append(f.closes, 0)
	sub := feed.NewSubscription(filter, 64, func() {
		f.mu.Lock()
		f.closes[idx]++
		f.mu.Unlock()
	})
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeFeed) sub(t *testing.T, i int) *feed.Subscription {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.subs) {
		t.Fatalf("subscription %d not opened (have %d)", i, len(f.subs))
	}
	return f.subs[i]
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeFeed) closeCount(i int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes[i]
}

func bm(id, title, url, owner string, created int64) domain.Bookmark {
	return domain.Bookmark{ID: id, Title: title, URL: url, OwnerID: owner, CreatedAt: time.Unix(created, 0).UTC()}
}

func insertOf(b domain.Bookmark) domain.Change {
	return domain.Change{Kind: domain.ChangeInsert, New: &b}
}

func deleteOf(b domain.Bookmark) domain.Change {
	return domain.Change{Kind: domain.ChangeDelete, Old: &b}
}

func updateOf(b domain.Bookmark) domain.Change {
	return domain.Change{Kind: domain.ChangeUpdate, New: &b}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func ids(items []domain.Bookmark) []string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = b.ID
	}
	return out
}

func hasID(s *Syncer, id string) func() bool {
	return func() bool { return domain.IndexOf(s.Items(), id) >= 0 }
}
