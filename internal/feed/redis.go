package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/redis/go-redis/v9"
)

// KeyPrefixFeed is the prefix of the per-owner pub/sub channels.
const KeyPrefixFeed = "marksync:feed:"

// ErrNoOwner is returned when publishing a change that cannot be attributed.
var ErrNoOwner = errors.New("change has no owner")

// Channel returns the pub/sub channel carrying an owner's changes
func Channel(ownerID string) string {
	return KeyPrefixFeed + ownerID
}

// RedisBroker relays changes through Redis pub/sub so subscribers on any
// server instance see writes made through any other.
type RedisBroker struct {
	client *redis.Client
	buffer int
	log    logger.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewRedisBroker creates a broker on top of an existing client
func NewRedisBroker(client *redis.Client, buffer int, log logger.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		buffer: buffer,
		log:    log,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Publish sends c on its owner's channel.
func (b *RedisBroker) Publish(ctx context.Context, c domain.Change) error {
	owner := c.OwnerID()
	if owner == "" {
		return ErrNoOwner
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(owner), data).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe listens on the filter owner's channel, or on every owner's
// channel when the filter has no owner. It returns once Redis has
// confirmed the subscription.
func (b *RedisBroker) Subscribe(ctx context.Context, filter domain.Filter) (*Subscription, error) {
	var ps *redis.PubSub
	if filter.OwnerID == "" {
		ps = b.client.PSubscribe(ctx, KeyPrefixFeed+"*")
	} else {
		ps = b.client.Subscribe(ctx, Channel(filter.OwnerID))
	}
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	var sub *Subscription
	sub = NewSubscription(filter, b.buffer, func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		_ = ps.Close()
	})
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	sub.SetStatus(domain.StatusSubscribed)

	go b.pump(ps, sub)
	return sub, nil
}

// Count returns the number of open subscriptions
func (b *RedisBroker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Close ends every open subscription with a closed status.
func (b *RedisBroker) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Fail(domain.StatusClosed)
	}
}

func (b *RedisBroker) pump(ps *redis.PubSub, sub *Subscription) {
	messages := ps.Channel()
	for {
		select {
		case <-sub.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				sub.Fail(domain.StatusClosed)
				return
			}
			var c domain.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.log.Warn("Discarding malformed change",
					logger.String("channel", msg.Channel),
					logger.Error(err),
				)
				continue
			}
			sub.Deliver(c)
		}
	}
}
