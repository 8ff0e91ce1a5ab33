package domain

import "slices"

// Filter scopes a change feed subscription to one table, one owner and a set
// of notification kinds.
type Filter struct {
	Table   string       `json:"table"`
	OwnerID string       `json:"owner_id"`
	Kinds   []ChangeKind `json:"kinds"`
}

// OwnerFilter returns the filter used by a session: every kind of change on
// the bookmarks table for a single owner.
func OwnerFilter(ownerID string) Filter {
	return Filter{
		Table:   Table,
		OwnerID: ownerID,
		Kinds:   slices.Clone(AllChangeKinds),
	}
}

// Matches reports whether the change passes the filter.
// A delete whose old row carries only the ID passes any owner filter:
// receivers apply it by ID and ignore IDs they do not hold.
func (f Filter) Matches(c Change) bool {
	if f.Table != "" && f.Table != Table {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, c.Kind) {
		return false
	}
	if c.Record() == nil {
		return false
	}
	if f.OwnerID == "" {
		return true
	}
	if c.Kind == ChangeDelete && c.OwnerID() == "" {
		return true
	}
	return c.OwnerID() == f.OwnerID
}
