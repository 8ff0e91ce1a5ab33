package homepage

import (
	"errors"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// ErrNoBookmarks is returned when a config holds no usable entry.
var ErrNoBookmarks = errors.New("no valid bookmarks found in config")

// Map converts a config into bookmarks owned by ownerID.
// The bookmark name is the title; entries without an href are skipped.
func Map(config BookmarksConfig, ownerID string) ([]domain.NewBookmark, error) {
	var out []domain.NewBookmark

	for _, group := range config {
		for _, list := range group {
			for _, item := range list {
				for name, entries := range item {
					if len(entries) == 0 {
						continue
					}
					href := strings.TrimSpace(entries[0].Href)
					if href == "" {
						continue
					}
					out = append(out, domain.NewBookmark{
						Title:   strings.TrimSpace(name),
						URL:     href,
						OwnerID: ownerID,
					})
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoBookmarks
	}
	return out, nil
}
