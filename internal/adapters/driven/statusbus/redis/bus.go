// Package redis provides a StatusBus over Redis pub/sub, so job events
// reach watchers in other processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure Bus implements the interface.
var _ driven.StatusBus = (*Bus)(nil)

// ChannelPrefix namespaces per-project channels.
const ChannelPrefix = "lorekeeper:status:"

// DefaultCapacity is the buffered channel size per subscriber.
const DefaultCapacity = 64

// ErrClosed is returned after Close.
var ErrClosed = errors.New("status bus closed")

// Bus publishes job events to a Redis channel per project.
type Bus struct {
	client     *redis.Client
	ownsClient bool
	capacity   int

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New connects to addr and verifies the server answers.
func New(ctx context.Context, addr string) (*Bus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	b := NewWithClient(client)
	b.ownsClient = true
	return b, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership.
func NewWithClient(client *redis.Client) *Bus {
	return &Bus{
		client:   client,
		capacity: DefaultCapacity,
		subs:     make(map[*subscription]struct{}),
	}
}

// Channel returns the Redis channel for a project.
func Channel(projectID string) string {
	return ChannelPrefix + projectID
}

// Publish sends event to the project's channel.
func (b *Bus) Publish(ctx context.Context, event domain.JobEvent) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding job event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(event.ProjectID), payload).Err(); err != nil {
		return fmt.Errorf("publishing job event: %w", err)
	}
	return nil
}

// Subscribe listens on the project's channel. It returns once Redis has
// confirmed the subscription, so no later Publish is missed.
func (b *Bus) Subscribe(ctx context.Context, projectID string) (<-chan domain.JobEvent, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, Channel(projectID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", Channel(projectID), err)
	}

	sub := &subscription{
		pubsub: pubsub,
		out:    make(chan domain.JobEvent, b.capacity),
		stop:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		pubsub.Close()
		return nil, nil, ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go b.forward(ctx, sub)

	cancel := func() {
		sub.halt()
	}
	return sub.out, cancel, nil
}

// Close ends every subscription, and closes the client if New created it.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.halt()
	}
	b.wg.Wait()

	if b.ownsClient {
		return b.client.Close()
	}
	return nil
}

func (b *Bus) forward(ctx context.Context, sub *subscription) {
	defer b.wg.Done()
	defer func() {
		sub.pubsub.Close()
		close(sub.out)
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}()

	msgs := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var event domain.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("status bus: ignoring malformed event on %s: %v", msg.Channel, err)
				continue
			}
			deliver(sub.out, event)
		}
	}
}

// deliver never blocks: the oldest buffered event makes room for the newest.
func deliver(out chan domain.JobEvent, event domain.JobEvent) {
	for {
		select {
		case out <- event:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}

type subscription struct {
	pubsub *redis.PubSub
	out    chan domain.JobEvent
	stop   chan struct{}
	once   sync.Once
}

func (s *subscription) halt() {
	s.once.Do(func() { close(s.stop) })
}
