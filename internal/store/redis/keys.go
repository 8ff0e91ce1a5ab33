package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixBookmark is the prefix for bookmark row keys
	KeyPrefixBookmark = "marksync:bookmark:"
	// KeyPrefixOwner is the prefix for per-owner index keys
	KeyPrefixOwner = "marksync:owner:"
)

// BookmarkKey returns the Redis key for a bookmark row
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// OwnerKey returns the sorted set holding an owner's bookmark IDs
func OwnerKey(ownerID string) string {
	return KeyPrefixOwner + ownerID + ":bookmarks"
}

// ExtractBookmarkID extracts the bookmark ID from a Redis key
func ExtractBookmarkID(key string) (string, error) {
	id, ok := strings.CutPrefix(key, KeyPrefixBookmark)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid bookmark key: %s", key)
	}
	return id, nil
}
