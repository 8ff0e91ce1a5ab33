package feed

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// Broker publishes changes and opens filtered subscriptions.
type Broker interface {
	Publish(ctx context.Context, c domain.Change) error
	Subscribe(ctx context.Context, filter domain.Filter) (*Subscription, error)
	Count() int
	Close()
}

var (
	_ Broker = (*Hub)(nil)
	_ Broker = (*RedisBroker)(nil)
)

// Hub fans changes out to subscriptions within one process.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	log    logger.Logger
}

// NewHub creates an in-process broker
func NewHub(buffer int, log logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a subscription and reports it as subscribed right away.
func (h *Hub) Subscribe(ctx context.Context, filter domain.Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sub *Subscription
	sub = NewSubscription(filter, h.buffer, func() { h.remove(sub) })

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	sub.SetStatus(domain.StatusSubscribed)
	h.log.Debug("Feed subscription opened",
		logger.String("owner", filter.OwnerID),
	)
	return sub, nil
}

// Publish delivers c to every matching subscription.
func (h *Hub) Publish(_ context.Context, c domain.Change) error {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.Deliver(c) && sub.Closed() {
			h.log.Debug("Dropped change for closed subscription",
				logger.String("owner", sub.Filter().OwnerID),
			)
		}
	}
	return nil
}

// Count returns the number of open subscriptions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close ends every open subscription with a closed status.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Fail(domain.StatusClosed)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}
