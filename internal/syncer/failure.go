package syncer

import (
	"errors"
	"fmt"
)

// FailureKind classifies what went wrong.
type FailureKind string

const (
	// FailureQuery means the initial load did not complete.
	FailureQuery FailureKind = "query"
	// FailureMutation means an add or remove request was rejected.
	FailureMutation FailureKind = "mutation"
	// FailureSubscription means the change feed closed, timed out or errored.
	FailureSubscription FailureKind = "subscription"
)

var (
	// ErrNoOwner is returned by Add and Remove when no identity is active.
	ErrNoOwner = errors.New("no active owner")

	// ErrSubscriptionLost wraps the status a subscription ended with.
	ErrSubscriptionLost = errors.New("subscription lost")
)

// Failure is a reportable condition. None of them is fatal: state is left
// as it was before the failing operation.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure during %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsFailureKind reports whether err is a Failure of the given kind.
func IsFailureKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
