package domain

import "errors"

var (
	// ErrNotFound is returned when a bookmark does not exist or is not
	// visible to the requesting owner.
	ErrNotFound = errors.New("bookmark not found")

	// ErrInvalid is returned when a row violates a column constraint.
	ErrInvalid = errors.New("invalid bookmark")
)
