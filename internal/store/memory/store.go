package memory

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// Store keeps bookmarks in process memory. Used in tests and with
// MARKSYNC_STORE=memory; contents are lost on restart.
type Store struct {
	mu        sync.RWMutex
	bookmarks map[string]domain.Bookmark // ID -> Bookmark
	byOwner   map[string]map[string]struct{}
}

// NewStore creates an empty memory store
func NewStore() *Store {
	return &Store{
		bookmarks: make(map[string]domain.Bookmark),
		byOwner:   make(map[string]map[string]struct{}),
	}
}

// Save adds or replaces a single bookmark
func (s *Store) Save(_ context.Context, b domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.bookmarks[b.ID]; ok && prev.OwnerID != b.OwnerID {
		delete(s.byOwner[prev.OwnerID], b.ID)
	}
	s.bookmarks[b.ID] = b
	ids, ok := s.byOwner[b.OwnerID]
	if !ok {
		ids = make(map[string]struct{})
		s.byOwner[b.OwnerID] = ids
	}
	ids[b.ID] = struct{}{}
	return nil
}

// Get retrieves a bookmark by ID
func (s *Store) Get(_ context.Context, id string) (domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookmarks[id]
	if !ok {
		return domain.Bookmark{}, domain.ErrNotFound
	}
	return b, nil
}

// ListByOwner returns the owner's bookmarks, newest first
func (s *Store) ListByOwner(_ context.Context, ownerID string) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	out := make([]domain.Bookmark, 0, len(ids))
	for id := range ids {
		out = append(out, s.bookmarks[id])
	}
	domain.SortNewestFirst(out)
	return out, nil
}

// Delete removes a bookmark and reports whether it existed
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookmarks[id]
	if !ok {
		return false, nil
	}
	delete(s.bookmarks, id)
	delete(s.byOwner[b.OwnerID], id)
	if len(s.byOwner[b.OwnerID]) == 0 {
		delete(s.byOwner, b.OwnerID)
	}
	return true, nil
}

// Count returns the number of stored bookmarks
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.bookmarks)
}
