package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// JobStore persists processing jobs.
//
// Writers pass the state they last observed. A write whose expected state no
// longer matches the stored one fails with domain.ErrStateConflict, so a
// timeout that has already failed a job is never overwritten by a late stage.
type JobStore interface {
	// CreateJob inserts a new job. It fails with domain.ErrJobAlreadyActive
	// when the project already has a non-terminal job.
	CreateJob(ctx context.Context, job *domain.ProcessingJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id string) (*domain.ProcessingJob, error)

	// UpdateJob replaces the stored job if its state still equals expected.
	UpdateJob(ctx context.Context, job *domain.ProcessingJob, expected domain.JobState) error

	// TransitionJob changes only the state column if it still equals expected.
	TransitionJob(ctx context.Context, id string, expected, to domain.JobState) error

	// LatestJob returns the most recently created job of a project, or nil.
	LatestJob(ctx context.Context, projectID string) (*domain.ProcessingJob, error)

	// LastCompletedJob returns the most recent done job of a project, or nil.
	LastCompletedJob(ctx context.Context, projectID string) (*domain.ProcessingJob, error)

	// ListActiveJobs returns all non-terminal jobs across projects.
	ListActiveJobs(ctx context.Context) ([]domain.ProcessingJob, error)

	// ListJobs returns a project's jobs, newest first.
	ListJobs(ctx context.Context, projectID string, limit int) ([]domain.ProcessingJob, error)

	// CountJobs counts a project's jobs in the given state.
	CountJobs(ctx context.Context, projectID string, state domain.JobState) (int, error)
}
