package driving

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// Scheduler runs background tasks: the job timeout sweep and, when enabled,
// auto-analysis of stale projects.
type Scheduler interface {
	// Start blocks until ctx is done or Stop is called.
	Start(ctx context.Context) error
	// Stop waits for running tasks to finish.
	Stop() error
	// Tasks reports each persisted task with up to recent of its runs.
	Tasks(ctx context.Context, recent int) ([]domain.TaskStatus, error)
}
