package domain

import (
	"slices"
	"strings"
	"time"
)

// Table is the name of the relation bookmarks live in. Change feed
// subscriptions are scoped to it.
const Table = "bookmarks"

// Bookmark is a saved URL owned by exactly one identity.
// Rows are never edited in place: they are created and deleted.
type Bookmark struct {
	// ID is assigned by the record service on insert and never changes.
	ID string `json:"id"`

	// Title is the user supplied display string.
	Title string `json:"title"`

	// URL is stored as given. It is not parsed or validated as a URI.
	URL string `json:"url"`

	// OwnerID references the authenticated user the bookmark belongs to.
	OwnerID string `json:"user_id"`

	// CreatedAt is assigned at insertion and is the sort key (newest first).
	CreatedAt time.Time `json:"created_at"`
}

// NewBookmark is the payload of an insert request.
type NewBookmark struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	OwnerID string `json:"user_id"`
}

// Blank reports whether s is empty once surrounding whitespace is removed.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// NewerFirst orders a before b when a was created later. Equal timestamps
// fall back to the ID so the order is total and stable between renders.
func NewerFirst(a, b Bookmark) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

// SortNewestFirst sorts bookmarks in place by creation time, descending.
func SortNewestFirst(bookmarks []Bookmark) {
	slices.SortStableFunc(bookmarks, NewerFirst)
}

// IndexOf returns the position of the bookmark with the given id, or -1.
func IndexOf(bookmarks []Bookmark, id string) int {
	return slices.IndexFunc(bookmarks, func(b Bookmark) bool { return b.ID == id })
}

// InsertSorted returns bookmarks with b placed at its sorted position.
// The input must already be sorted newest first.
func InsertSorted(bookmarks []Bookmark, b Bookmark) []Bookmark {
	pos, _ := slices.BinarySearchFunc(bookmarks, b, NewerFirst)
	return slices.Insert(bookmarks, pos, b)
}
