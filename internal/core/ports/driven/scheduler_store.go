package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// SchedulerStore keeps background task state and a bounded run log, so the
// scheduler resumes its cadence after a restart.
type SchedulerStore interface {
	// GetTask returns nil and no error for an unknown task.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)
	// SaveTask upserts by ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	AppendRun(ctx context.Context, run *domain.TaskRun) error
	// RecentRuns returns up to limit runs of a task, newest first.
	RecentRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error)
	// TrimRuns keeps only the newest keep runs of every task.
	TrimRuns(ctx context.Context, keep int) error
}
