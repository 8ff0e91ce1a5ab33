package domain

import "time"

// ChangeKind is the kind of row-level notification emitted by the change feed.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// AllChangeKinds lists every notification kind, in the order they are documented.
var AllChangeKinds = []ChangeKind{ChangeInsert, ChangeUpdate, ChangeDelete}

// Valid reports whether k is a known change kind.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// Change is one row-level notification.
//
// Insert and update carry the new row in New. Delete carries the removed row
// in Old; producers that do not know the full row may only set Old.ID.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	New        *Bookmark  `json:"new,omitempty"`
	Old        *Bookmark  `json:"old,omitempty"`
	CommitTime time.Time  `json:"commit_time"`
}

// Record returns the row the change is about: New for insert and update,
// Old for delete. It returns nil for malformed changes.
func (c Change) Record() *Bookmark {
	switch c.Kind {
	case ChangeInsert, ChangeUpdate:
		return c.New
	case ChangeDelete:
		return c.Old
	}
	return nil
}

// OwnerID returns the owner of the record the change refers to, or "" when
// the producer did not include it.
func (c Change) OwnerID() string {
	if r := c.Record(); r != nil {
		return r.OwnerID
	}
	return ""
}

// SubscriptionStatus is a lifecycle transition reported by a change feed subscription.
type SubscriptionStatus string

const (
	StatusSubscribed SubscriptionStatus = "subscribed"
	StatusClosed     SubscriptionStatus = "closed"
	StatusTimedOut   SubscriptionStatus = "timed_out"
	StatusErrored    SubscriptionStatus = "errored"
)

// Connected reports whether the status means notifications are flowing.
func (s SubscriptionStatus) Connected() bool {
	return s == StatusSubscribed
}
