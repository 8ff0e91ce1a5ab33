package records

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound is returned when the row is absent or owned by someone else.
	ErrNotFound = domain.ErrNotFound

	// ErrInvalid is returned when a required column is blank.
	ErrInvalid = domain.ErrInvalid
)

// Backend is the persistence a Service writes through.
type Backend interface {
	Save(ctx context.Context, b domain.Bookmark) error
	Get(ctx context.Context, id string) (domain.Bookmark, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// BatchSaver is implemented by backends that can persist many rows in one
// round trip. Import uses it when available.
type BatchSaver interface {
	SaveMany(ctx context.Context, bookmarks []domain.Bookmark) error
}

// Publisher receives every committed change.
type Publisher interface {
	Publish(ctx context.Context, c domain.Change) error
}

// Service is the authoritative bookmark store. It enforces column
// constraints and the owner-only access policy, and publishes a change
// for every committed write.
type Service struct {
	backend   Backend
	publisher Publisher
	log       logger.Logger
	now       func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewService creates a record service
func NewService(backend Backend, publisher Publisher, log logger.Logger) *Service {
	return &Service{
		backend:   backend,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// ListByOwner returns the owner's bookmarks, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	if domain.Blank(ownerID) {
		return []domain.Bookmark{}, nil
	}
	list, err := s.backend.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	domain.SortNewestFirst(list)
	return list, nil
}

// Insert validates and persists a new bookmark, assigning its ID and
// creation time. Values are stored as given.
func (s *Service) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	b, err := s.build(nb)
	if err != nil {
		return domain.Bookmark{}, err
	}
	if err := s.backend.Save(ctx, b); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to insert bookmark: %w", err)
	}

	s.published(ctx, b)
	return b, nil
}

func (s *Service) build(nb domain.NewBookmark) (domain.Bookmark, error) {
	if err := validate(nb); err != nil {
		return domain.Bookmark{}, err
	}
	now := s.now().UTC()
	return domain.Bookmark{
		ID:        s.newID(now),
		Title:     nb.Title,
		URL:       nb.URL,
		OwnerID:   nb.OwnerID,
		CreatedAt: now,
	}, nil
}

func (s *Service) published(ctx context.Context, b domain.Bookmark) {
	s.publish(ctx, domain.Change{Kind: domain.ChangeInsert, New: &b, CommitTime: b.CreatedAt})
}

// Delete removes the bookmark if ownerID owns it.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	b, err := s.backend.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load bookmark: %w", err)
	}
	if b.OwnerID != ownerID {
		return ErrNotFound
	}

	deleted, err := s.backend.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if !deleted {
		// Lost a race with another delete of the same row
		return ErrNotFound
	}

	s.publish(ctx, domain.Change{Kind: domain.ChangeDelete, Old: &b, CommitTime: s.now().UTC()})
	return nil
}

// Import inserts the entries whose URL the owner does not already have.
// It returns the number of rows inserted.
func (s *Service) Import(ctx context.Context, ownerID string, entries []domain.NewBookmark) (int, error) {
	existing, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		seen[b.URL] = struct{}{}
	}

	rows := make([]domain.Bookmark, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		e.OwnerID = ownerID
		b, err := s.build(e)
		if err != nil {
			s.log.Warn("Skipping invalid seed entry",
				logger.String("title", e.Title),
				logger.String("url", e.URL),
			)
			continue
		}
		seen[e.URL] = struct{}{}
		rows = append(rows, b)
	}

	batch, ok := s.backend.(BatchSaver)
	if !ok {
		for i, b := range rows {
			if err := s.backend.Save(ctx, b); err != nil {
				return i, fmt.Errorf("failed to import bookmark: %w", err)
			}
			s.published(ctx, b)
		}
		return len(rows), nil
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if err := batch.SaveMany(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to import bookmarks: %w", err)
	}
	for _, b := range rows {
		s.published(ctx, b)
	}
	return len(rows), nil
}

func (s *Service) newID(t time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// publish never fails the write: the row is committed already.
func (s *Service) publish(ctx context.Context, c domain.Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, c); err != nil {
		s.log.Error("Failed to publish change",
			logger.String("kind", string(c.Kind)),
			logger.String("id", c.Record().ID),
			logger.Error(err),
		)
	}
}

func validate(nb domain.NewBookmark) error {
	var missing []string
	if domain.Blank(nb.OwnerID) {
		missing = append(missing, "user_id")
	}
	if domain.Blank(nb.Title) {
		missing = append(missing, "title")
	}
	if domain.Blank(nb.URL) {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}
