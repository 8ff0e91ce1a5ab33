package postgres

import (
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// BookmarkModel is the GORM model backing the bookmarks table.
type BookmarkModel struct {
	ID        string    `gorm:"primaryKey"`
	OwnerID   string    `gorm:"column:owner_id;not null;index"`
	Title     string    `gorm:"not null"`
	URL       string    `gorm:"column:url;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName pins the table name to the one used in change filters.
func (BookmarkModel) TableName() string {
	return domain.Table
}

func toModel(b domain.Bookmark) BookmarkModel {
	return BookmarkModel{
		ID:        b.ID,
		OwnerID:   b.OwnerID,
		Title:     b.Title,
		URL:       b.URL,
		CreatedAt: b.CreatedAt.UTC(),
	}
}

func fromModel(m BookmarkModel) domain.Bookmark {
	return domain.Bookmark{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Title:     m.Title,
		URL:       m.URL,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
