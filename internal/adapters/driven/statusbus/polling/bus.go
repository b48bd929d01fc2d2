// Package polling provides a StatusBus that reads job state from the job
// store on an interval. It needs no broker, and it sees transitions made by
// other processes sharing the same database.
package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure Bus implements the interface.
var _ driven.StatusBus = (*Bus)(nil)

// Interval bounds.
const (
	DefaultInterval = 2 * time.Second
	MinInterval     = domain.MinPollInterval
	MaxInterval     = domain.MaxPollInterval
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("status bus closed")

// ClampInterval limits d to [MinInterval, MaxInterval]; zero means the default.
func ClampInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultInterval
	}
	return domain.ClampPollInterval(d)
}

// Bus emits an event whenever the project's latest job changes state.
// Publish is a no-op because the job store already holds every transition.
type Bus struct {
	jobs     driven.JobStore
	interval time.Duration

	mu     sync.Mutex
	stop   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a polling bus over jobs.
func New(jobs driven.JobStore, interval time.Duration) *Bus {
	return &Bus{
		jobs:     jobs,
		interval: ClampInterval(interval),
		stop:     make(chan struct{}),
	}
}

// Publish does nothing; subscribers observe the store directly.
func (b *Bus) Publish(_ context.Context, _ domain.JobEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Subscribe starts polling the project. The first poll happens immediately
// and reports the current job, if any.
func (b *Bus) Subscribe(ctx context.Context, projectID string) (<-chan domain.JobEvent, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()

	out := make(chan domain.JobEvent, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer b.wg.Done()
		defer close(out)

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		var last domain.JobEvent
		for {
			if ev, ok := b.poll(ctx, projectID, last); ok {
				last = ev
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-done:
					return
				case <-b.stop:
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-b.stop:
				return
			}
		}
	}()

	return out, cancel, nil
}

// poll returns an event when the latest job differs from last.
func (b *Bus) poll(ctx context.Context, projectID string, last domain.JobEvent) (domain.JobEvent, bool) {
	job, err := b.jobs.LatestJob(ctx, projectID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("status poll for project %s: %v", projectID, err)
		}
		return domain.JobEvent{}, false
	}
	if job == nil {
		return domain.JobEvent{}, false
	}
	if job.ID == last.JobID && job.State == last.State {
		return domain.JobEvent{}, false
	}

	ev := domain.JobEvent{
		ProjectID: projectID,
		JobID:     job.ID,
		State:     job.State,
		Error:     job.ErrorDetails,
		At:        job.UpdatedAt,
	}
	if job.ID == last.JobID {
		ev.Previous = last.State
	}
	return ev, true
}

// Close stops every subscription and waits for the pollers to exit.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
