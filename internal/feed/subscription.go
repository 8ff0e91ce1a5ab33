package feed

import (
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// DefaultBuffer is the change buffer size used when none is given.
const DefaultBuffer = 64

// statusBuffer holds the initial subscribed status plus one terminal status.
const statusBuffer = 4

// Subscription is one filtered stream of changes.
//
// Changes and Statuses are never closed; Done is closed once the
// subscription ends, either because the consumer called Close or because
// the producer reported a terminal status.
type Subscription struct {
	filter   domain.Filter
	changes  chan domain.Change
	statuses chan domain.SubscriptionStatus
	done     chan struct{}

	once    sync.Once
	onClose func()
}

// NewSubscription creates a subscription delivering changes that match
// filter. onClose, if not nil, runs exactly once when the subscription ends.
func NewSubscription(filter domain.Filter, buffer int, onClose func()) *Subscription {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Subscription{
		filter:   filter,
		changes:  make(chan domain.Change, buffer),
		statuses: make(chan domain.SubscriptionStatus, statusBuffer),
		done:     make(chan struct{}),
		onClose:  onClose,
	}
}

// Filter returns the filter the subscription was opened with.
func (s *Subscription) Filter() domain.Filter {
	return s.filter
}

// Changes returns the change stream.
func (s *Subscription) Changes() <-chan domain.Change {
	return s.changes
}

// Statuses returns the lifecycle status stream.
func (s *Subscription) Statuses() <-chan domain.SubscriptionStatus {
	return s.statuses
}

// Done is closed when the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether the subscription has ended.
func (s *Subscription) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Deliver queues c if it passes the filter. It never blocks: a consumer
// that lets the buffer fill up gets an errored status and is closed.
// It reports whether the change was queued.
func (s *Subscription) Deliver(c domain.Change) bool {
	if s.Closed() || !s.filter.Matches(c) {
		return false
	}
	select {
	case s.changes <- c:
		return true
	case <-s.done:
		return false
	default:
		s.Fail(domain.StatusErrored)
		return false
	}
}

// SetStatus reports a non-terminal status such as subscribed.
func (s *Subscription) SetStatus(status domain.SubscriptionStatus) {
	if s.Closed() {
		return
	}
	select {
	case s.statuses <- status:
	default:
	}
}

// Fail reports a terminal status and ends the subscription.
func (s *Subscription) Fail(status domain.SubscriptionStatus) {
	s.once.Do(func() {
		select {
		case s.statuses <- status:
		default:
		}
		s.finish()
	})
}

// Close ends the subscription without reporting a status. It is safe to
// call more than once and from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(s.finish)
}

func (s *Subscription) finish() {
	close(s.done)
	if s.onClose != nil {
		s.onClose()
	}
}
