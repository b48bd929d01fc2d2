package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// StatusBus fans job events out to subscribers of a project.
type StatusBus interface {
	// Publish delivers an event to the project's current subscribers.
	// Slow subscribers may miss events; they never block the publisher.
	Publish(ctx context.Context, event domain.JobEvent) error

	// Subscribe returns a channel of the project's events. The channel is
	// closed when ctx is done or cancel is called.
	Subscribe(ctx context.Context, projectID string) (events <-chan domain.JobEvent, cancel func(), err error)

	// Close stops all subscriptions.
	Close() error
}
