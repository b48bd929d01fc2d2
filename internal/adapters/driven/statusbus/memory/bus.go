// Package memory provides an in-process StatusBus.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure Bus implements the interface.
var _ driven.StatusBus = (*Bus)(nil)

// DefaultCapacity is the buffered channel size per subscriber.
const DefaultCapacity = 64

// ErrClosed is returned after Close.
var ErrClosed = errors.New("status bus closed")

// Option customises Bus construction.
type Option func(*Bus)

// WithCapacity overrides the buffered channel size per subscriber.
func WithCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// Bus delivers job events to subscribers keyed by project ID.
// When a subscriber's buffer is full the oldest event is dropped, so a
// slow reader always sees the most recent state.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	capacity    int
	closed      bool
}

// New creates an in-process status bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string]map[*subscriber]struct{}),
		capacity:    DefaultCapacity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Publish delivers event to the project's current subscribers.
func (b *Bus) Publish(_ context.Context, event domain.JobEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subscribers[event.ProjectID] {
		sub.deliver(event)
	}
	return nil
}

// Subscribe registers for the project's events until ctx is done or
// cancel is called.
func (b *Bus) Subscribe(ctx context.Context, projectID string) (<-chan domain.JobEvent, func(), error) {
	sub := newSubscriber(b.capacity)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if b.subscribers[projectID] == nil {
		b.subscribers[projectID] = make(map[*subscriber]struct{})
	}
	b.subscribers[projectID][sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.remove(projectID, sub)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
	return sub.ch, cancel, nil
}

// Close ends every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for project, subs := range b.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(b.subscribers, project)
	}
	return nil
}

func (b *Bus) remove(projectID string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs := b.subscribers[projectID]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, projectID)
		}
	}
	sub.close()
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan domain.JobEvent
	done   chan struct{}
	closed bool
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{
		ch:   make(chan domain.JobEvent, capacity),
		done: make(chan struct{}),
	}
}

func (s *subscriber) deliver(event domain.JobEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- event:
			return
		default:
		}
		select {
		case dropped := <-s.ch:
			logger.Debug("status bus: dropped %s event for job %s", dropped.State, dropped.JobID)
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
}
