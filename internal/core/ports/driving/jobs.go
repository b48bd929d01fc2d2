package driving

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// JobService drives processing jobs through their lifecycle.
type JobService interface {
	// Start creates a pending job. It fails with domain.ErrJobAlreadyActive
	// when the project already has a non-terminal job.
	Start(ctx context.Context, projectID string, jobType domain.JobType, options map[string]string) (*domain.ProcessingJob, error)

	// Advance moves the job exactly one stage forward, or to failed.
	Advance(ctx context.Context, jobID string) (*domain.ProcessingJob, error)

	// Run advances the job until it is terminal.
	Run(ctx context.Context, jobID string) (*domain.ProcessingJob, error)

	// Get returns a job by ID.
	Get(ctx context.Context, jobID string) (*domain.ProcessingJob, error)

	// Status reports the project's processing status.
	Status(ctx context.Context, projectID string) (*domain.StatusReport, error)

	// History lists recent jobs of a project, newest first.
	History(ctx context.Context, projectID string, limit int) ([]domain.ProcessingJob, error)
}

// StalenessDetector decides which documents need (re)analysis.
type StalenessDetector interface {
	// Detect returns stale documents in document order. An unreadable
	// fingerprint store yields a report with StalenessUnknown, not an error.
	Detect(ctx context.Context, projectID string) (*domain.StalenessReport, error)
}

// TimeoutSupervisor fails jobs and enhancements that exceed the ceiling.
type TimeoutSupervisor interface {
	// WatchJob arms a live timer for the job.
	WatchJob(job domain.ProcessingJob)

	// WatchEnhancement arms a live timer for the enhancement.
	WatchEnhancement(e domain.Enhancement)

	// Sweep fails every over-ceiling job and enhancement it finds in storage.
	Sweep(ctx context.Context) (SweepResult, error)

	// Stop cancels all live timers.
	Stop()
}

// SweepResult reports what a sweep expired.
type SweepResult struct {
	JobsExpired         int
	EnhancementsExpired int
}
