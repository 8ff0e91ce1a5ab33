// Package undo offers to re-add the most recently deleted bookmark for a
// short time. The re-added row is a new record with a new ID and timestamp.
package undo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// DefaultWindow is how long a delete stays undoable.
const DefaultWindow = 5 * time.Second

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrExpired       = errors.New("undo window expired")
)

// Adder is the write path an undo goes through.
type Adder interface {
	Add(ctx context.Context, title, url string) (domain.Bookmark, error)
}

// Notice is a transient message for the presentation layer.
type Notice struct {
	Message  string
	Lifetime time.Duration
	Undoable bool
}

var (
	AddedNotice   = Notice{Message: "Bookmark added successfully", Lifetime: 4 * time.Second}
	DeletedNotice = Notice{Message: "Bookmark deleted", Lifetime: DefaultWindow, Undoable: true}
)

type offer struct {
	title   string
	url     string
	expires time.Time
}

// Manager holds at most one pending offer: the latest delete.
type Manager struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	pending *offer
}

// NewManager creates a manager. A non-positive window uses DefaultWindow.
func NewManager(window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{window: window, now: time.Now}
}

// Offer records b as undoable, replacing any earlier offer.
func (m *Manager) Offer(b domain.Bookmark) Notice {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = &offer{title: b.Title, url: b.URL, expires: m.now().Add(m.window)}
	n := DeletedNotice
	n.Lifetime = m.window
	return n
}

// Pending reports whether an unexpired offer exists.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pending != nil && m.now().Before(m.pending.expires)
}

// Undo re-adds the offered bookmark through adder. The offer is consumed
// whether or not the add succeeds.
func (m *Manager) Undo(ctx context.Context, adder Adder) (domain.Bookmark, error) {
	m.mu.Lock()
	o := m.pending
	m.pending = nil
	now := m.now()
	m.mu.Unlock()

	if o == nil {
		return domain.Bookmark{}, ErrNothingToUndo
	}
	if !now.Before(o.expires) {
		return domain.Bookmark{}, ErrExpired
	}
	return adder.Add(ctx, o.title, o.url)
}

// Dismiss drops the pending offer.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
}
