// Package syncer keeps a session's bookmark list in step with the record
// store and its change feed.
//
// Writes are applied optimistically: a successful Add or Remove updates the
// list immediately, and the matching feed notification, whichever arrives
// first, is then a no-op. Every mutation of the list is keyed by ID.
package syncer

import (
	"context"
	"slices"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// RecordStore is the query side the hook reads and writes through.
type RecordStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// ChangeFeed opens filtered change subscriptions.
type ChangeFeed interface {
	Subscribe(ctx context.Context, filter domain.Filter) (*feed.Subscription, error)
}

// State is a point-in-time copy of what the hook exposes.
type State struct {
	OwnerID   string
	Items     []domain.Bookmark
	Ready     bool
	Connected bool
}

// Syncer is the bookmark synchronization hook for one session.
type Syncer struct {
	store RecordStore
	feed  ChangeFeed
	log   logger.Logger

	mu        sync.Mutex
	gen       uint64
	ownerID   string
	items     []domain.Bookmark
	ready     bool
	connected bool
	sub       *feed.Subscription

	updates   chan struct{}
	failures  chan error
	onFailure func(error)
}

// New creates an idle hook. Call Initialize to start it.
func New(store RecordStore, changes ChangeFeed, log logger.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		feed:     changes,
		log:      log,
		updates:  make(chan struct{}, 1),
		failures: make(chan error, defaultFailureBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize binds the hook to ownerID. Any previous subscription is
// released first. An empty ownerID leaves the hook idle with no items and
// touches neither the store nor the feed.
//
// The subscription is opened before the list is queried and is only
// drained once the query result has been applied, so changes committed
// while the query runs are replayed on top of it. A query failure keeps
// the current items, is reported and returned; the hook is ready either
// way. A subscription failure is reported but not returned.
func (s *Syncer) Initialize(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	prev := s.sub
	s.sub = nil
	if ownerID != s.ownerID {
		s.items = nil
		s.ready = false
	}
	s.ownerID = ownerID
	s.connected = false
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	s.notify()

	if ownerID == "" {
		return nil
	}

	log := s.log.With(logger.String("owner", ownerID))

	sub, err := s.feed.Subscribe(ctx, domain.OwnerFilter(ownerID))
	if err != nil {
		s.report(&Failure{Kind: FailureSubscription, Op: "subscribe", Err: err})
	} else if !s.adopt(gen, sub) {
		sub.Close()
		return nil
	}

	list, err := s.store.ListByOwner(ctx, ownerID)

	s.mu.Lock()
	if s.gen != gen {
		// Torn down or re-initialized while the query ran
		s.mu.Unlock()
		log.Debug("Discarding stale initial load")
		return nil
	}
	var failure *Failure
	if err != nil {
		failure = &Failure{Kind: FailureQuery, Op: "initialize", Err: err}
	} else {
		s.items = ownedBy(list, ownerID)
	}
	s.ready = true
	s.mu.Unlock()
	s.notify()

	if sub != nil {
		go s.pump(gen, sub)
	}

	if failure != nil {
		s.report(failure)
		return failure
	}
	log.Debug("Initial load complete")
	return nil
}

// Reconnect re-initializes the hook for the current owner.
func (s *Syncer) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	owner := s.ownerID
	s.mu.Unlock()

	return s.Initialize(ctx, owner)
}

// Close tears the hook down: the subscription is released and the list is
// cleared. It is safe to call more than once.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.gen++
	sub := s.sub
	s.sub = nil
	s.ownerID = ""
	s.items = nil
	s.ready = false
	s.connected = false
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	s.notify()
}

// Add inserts a bookmark for the active owner. Title and url are sent as
// given; the store enforces its own constraints. On success the returned
// row is added to the list unless the feed already delivered it.
func (s *Syncer) Add(ctx context.Context, title, url string) (domain.Bookmark, error) {
	s.mu.Lock()
	owner, gen := s.ownerID, s.gen
	s.mu.Unlock()

	if owner == "" {
		return domain.Bookmark{}, s.fail(FailureMutation, "add", ErrNoOwner)
	}

	b, err := s.store.Insert(ctx, domain.NewBookmark{Title: title, URL: url, OwnerID: owner})
	if err != nil {
		return domain.Bookmark{}, s.fail(FailureMutation, "add", err)
	}

	s.mu.Lock()
	changed := s.gen == gen && b.OwnerID == owner && s.insertLocked(b)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return b, nil
}

// Remove deletes a bookmark by ID. On success it is removed from the list
// if still present.
func (s *Syncer) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	owner, gen := s.ownerID, s.gen
	s.mu.Unlock()

	if owner == "" {
		return s.fail(FailureMutation, "remove", ErrNoOwner)
	}

	if err := s.store.Delete(ctx, owner, id); err != nil {
		return s.fail(FailureMutation, "remove", err)
	}

	s.mu.Lock()
	changed := s.gen == gen && s.removeLocked(id)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Syncer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		OwnerID:   s.ownerID,
		Items:     slices.Clone(s.items),
		Ready:     s.ready,
		Connected: s.connected,
	}
}

// Items returns a copy of the list, newest first.
func (s *Syncer) Items() []domain.Bookmark {
	return s.Snapshot().Items
}

// Ready reports whether the initial load has completed.
func (s *Syncer) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready
}

// Connected reports whether the change feed is currently subscribed.
func (s *Syncer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connected
}

// Updates signals that the state changed. Signals are coalesced: one
// pending signal stands for any number of changes.
func (s *Syncer) Updates() <-chan struct{} {
	return s.updates
}

// Failures carries every *Failure the hook reports.
func (s *Syncer) Failures() <-chan error {
	return s.failures
}

// adopt records sub as the active subscription unless the hook moved on.
func (s *Syncer) adopt(gen uint64, sub *feed.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return false
	}
	s.sub = sub
	return true
}

func (s *Syncer) pump(gen uint64, sub *feed.Subscription) {
	for {
		select {
		case c := <-sub.Changes():
			s.apply(gen, c)
		case st := <-sub.Statuses():
			s.setStatus(gen, st)
		case <-sub.Done():
			s.drain(gen, sub)
			return
		}
	}
}

// drain handles whatever was queued before the subscription ended.
func (s *Syncer) drain(gen uint64, sub *feed.Subscription) {
	for {
		select {
		case c := <-sub.Changes():
			s.apply(gen, c)
			continue
		default:
		}
		select {
		case st := <-sub.Statuses():
			s.setStatus(gen, st)
			continue
		default:
		}
		break
	}

	s.mu.Lock()
	lost := s.gen == gen && s.connected
	if lost {
		s.connected = false
	}
	s.mu.Unlock()
	if lost {
		s.notify()
		s.fail(FailureSubscription, "listen", ErrSubscriptionLost)
	}
}

func (s *Syncer) apply(gen uint64, c domain.Change) {
	rec := c.Record()
	if rec == nil {
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if rec.OwnerID != s.ownerID && (c.Kind != domain.ChangeDelete || rec.OwnerID != "") {
		owner := s.ownerID
		s.mu.Unlock()
		s.log.Warn("Ignoring change for another owner",
			logger.String("owner", owner),
			logger.String("record_owner", rec.OwnerID),
			logger.String("id", rec.ID),
		)
		return
	}

	var changed bool
	switch c.Kind {
	case domain.ChangeInsert:
		changed = s.insertLocked(*rec)
	case domain.ChangeUpdate:
		changed = s.replaceLocked(*rec)
	case domain.ChangeDelete:
		changed = s.removeLocked(rec.ID)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Syncer) setStatus(gen uint64, st domain.SubscriptionStatus) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.connected = st.Connected()
	s.mu.Unlock()
	s.notify()

	if st.Connected() {
		s.log.Debug("Change feed subscribed")
		return
	}
	s.fail(FailureSubscription, string(st), ErrSubscriptionLost)
}

func (s *Syncer) insertLocked(b domain.Bookmark) bool {
	if domain.IndexOf(s.items, b.ID) >= 0 {
		return false
	}
	s.items = domain.InsertSorted(s.items, b)
	return true
}

func (s *Syncer) replaceLocked(b domain.Bookmark) bool {
	i := domain.IndexOf(s.items, b.ID)
	if i < 0 {
		return false
	}
	s.items[i] = b
	domain.SortNewestFirst(s.items)
	return true
}

func (s *Syncer) removeLocked(id string) bool {
	i := domain.IndexOf(s.items, id)
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

func (s *Syncer) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Syncer) fail(kind FailureKind, op string, err error) error {
	f := &Failure{Kind: kind, Op: op, Err: err}
	s.report(f)
	return f
}

func (s *Syncer) report(f *Failure) {
	s.log.Warn("Bookmark sync failure",
		logger.String("kind", string(f.Kind)),
		logger.String("op", f.Op),
		logger.Error(f.Err),
	)
	select {
	case s.failures <- f:
	default:
	}
	if s.onFailure != nil {
		s.onFailure(f)
	}
}

// ownedBy returns a sorted copy of list without foreign rows or duplicates.
func ownedBy(list []domain.Bookmark, ownerID string) []domain.Bookmark {
	out := make([]domain.Bookmark, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, b := range list {
		if b.OwnerID != ownerID {
			continue
		}
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	domain.SortNewestFirst(out)
	return out
}
