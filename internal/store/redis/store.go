package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store persists bookmarks in Redis. Each row is a JSON string and each
// owner has a sorted set of IDs scored by creation time.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Save stores a bookmark and indexes it under its owner
func (s *Store) Save(ctx context.Context, b domain.Bookmark) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
	pipe.ZAdd(ctx, OwnerKey(b.OwnerID), redis.Z{
		Score:  float64(b.CreatedAt.UnixMilli()),
		Member: b.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	return nil
}

// Get retrieves a bookmark by ID
func (s *Store) Get(ctx context.Context, id string) (domain.Bookmark, error) {
	data, err := s.client.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Bookmark{}, domain.ErrNotFound
		}
		return domain.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var b domain.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return b, nil
}

// ListByOwner returns the owner's bookmarks, newest first
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRevRange(ctx, OwnerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	out := make([]domain.Bookmark, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a row; skip it
			continue
		}
		var b domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
		}
		out = append(out, b)
	}

	// Scores only have millisecond precision
	domain.SortNewestFirst(out)
	return out, nil
}

// Delete removes a bookmark and reports whether it existed
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	b, err := s.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, BookmarkKey(id))
	pipe.ZRem(ctx, OwnerKey(b.OwnerID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return del.Val() > 0, nil
}

// SaveMany stores multiple bookmarks in one MULTI/EXEC transaction
func (s *Store) SaveMany(ctx context.Context, bookmarks []domain.Bookmark) error {
	pipe := s.client.TxPipeline()

	for _, b := range bookmarks {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark %s: %w", b.ID, err)
		}
		pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
		pipe.ZAdd(ctx, OwnerKey(b.OwnerID), redis.Z{
			Score:  float64(b.CreatedAt.UnixMilli()),
			Member: b.ID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save bookmarks: %w", err)
	}
	return nil
}
