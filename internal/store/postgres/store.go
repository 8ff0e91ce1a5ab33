package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements the record backend using GORM + Postgres.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and runs auto-migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&BookmarkModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts or updates a bookmark.
func (s *Store) Save(ctx context.Context, b domain.Bookmark) error {
	model := toModel(b)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "title", "url"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	return nil
}

// SaveMany upserts bookmarks in batches inside one transaction.
func (s *Store) SaveMany(ctx context.Context, bookmarks []domain.Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	models := make([]BookmarkModel, 0, len(bookmarks))
	for _, b := range bookmarks {
		models = append(models, toModel(b))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "title", "url"}),
		}).CreateInBatches(models, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save bookmarks: %w", err)
	}
	return nil
}

// Get returns a bookmark by ID.
func (s *Store) Get(ctx context.Context, id string) (domain.Bookmark, error) {
	var model BookmarkModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bookmark{}, domain.ErrNotFound
		}
		return domain.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return fromModel(model), nil
}

// ListByOwner returns the owner's bookmarks, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	var models []BookmarkModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	res := make([]domain.Bookmark, 0, len(models))
	for _, m := range models {
		res = append(res, fromModel(m))
	}
	return res, nil
}

// Delete removes a bookmark and reports whether a row was affected.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tx := s.db.WithContext(ctx).Delete(&BookmarkModel{}, "id = ?", id)
	if tx.Error != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
