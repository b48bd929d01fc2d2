package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.ProcessingJob
	seq  map[string]int
	next int
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]domain.ProcessingJob),
		seq:  make(map[string]int),
	}
}

// CreateJob inserts a job unless its project already has an active one.
func (s *JobStore) CreateJob(_ context.Context, job *domain.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.jobs {
		if existing.ProjectID == job.ProjectID && existing.State.IsActive() {
			return fmt.Errorf("%w: job %s is %s", domain.ErrJobAlreadyActive, existing.ID, existing.State)
		}
	}

	s.next++
	s.seq[job.ID] = s.next
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

// GetJob retrieves a job by ID.
func (s *JobStore) GetJob(_ context.Context, id string) (*domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneJob(job)
	return &out, nil
}

// UpdateJob replaces the stored job if its state still equals expected.
func (s *JobStore) UpdateJob(_ context.Context, job *domain.ProcessingJob, expected domain.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(*job, expected)
}

func (s *JobStore) updateLocked(job domain.ProcessingJob, expected domain.JobState) error {
	stored, ok := s.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := checkTransition(stored.State, expected, job.State); err != nil {
		return err
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// TransitionJob changes only the state if it still equals expected.
func (s *JobStore) TransitionJob(_ context.Context, id string, expected, to domain.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := checkTransition(stored.State, expected, to); err != nil {
		return err
	}
	stored.State = to
	s.jobs[id] = stored
	return nil
}

// LatestJob returns the most recently created job of a project, or nil.
func (s *JobStore) LatestJob(_ context.Context, projectID string) (*domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := s.listLocked(projectID, "")
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// LastCompletedJob returns the most recent done job of a project, or nil.
func (s *JobStore) LastCompletedJob(_ context.Context, projectID string) (*domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := s.listLocked(projectID, domain.JobStateDone)
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// ListActiveJobs returns all non-terminal jobs.
func (s *JobStore) ListActiveJobs(_ context.Context) ([]domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ProcessingJob
	for _, job := range s.jobs {
		if job.State.IsActive() {
			out = append(out, cloneJob(job))
		}
	}
	s.sortNewestFirst(out)
	return out, nil
}

// ListJobs returns a project's jobs, newest first.
func (s *JobStore) ListJobs(_ context.Context, projectID string, limit int) ([]domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := s.listLocked(projectID, "")
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// CountJobs counts a project's jobs in the given state.
func (s *JobStore) CountJobs(_ context.Context, projectID string, state domain.JobState) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listLocked(projectID, state)), nil
}

// listLocked returns a project's jobs newest first, optionally in one state.
func (s *JobStore) listLocked(projectID string, state domain.JobState) []domain.ProcessingJob {
	var out []domain.ProcessingJob
	for _, job := range s.jobs {
		if job.ProjectID != projectID {
			continue
		}
		if state != "" && job.State != state {
			continue
		}
		out = append(out, cloneJob(job))
	}
	s.sortNewestFirst(out)
	return out
}

func (s *JobStore) sortNewestFirst(jobs []domain.ProcessingJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return s.seq[jobs[i].ID] > s.seq[jobs[j].ID]
	})
}

// checkTransition validates a compare-and-set write.
func checkTransition(stored, expected, to domain.JobState) error {
	if stored != expected {
		return fmt.Errorf("%w: job is %s, expected %s", domain.ErrStateConflict, stored, expected)
	}
	if to != expected && !expected.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, to)
	}
	return nil
}

func cloneJob(job domain.ProcessingJob) domain.ProcessingJob {
	if job.Options != nil {
		opts := make(map[string]string, len(job.Options))
		for k, v := range job.Options {
			opts[k] = v
		}
		job.Options = opts
	}
	if job.DocumentIDs != nil {
		job.DocumentIDs = append([]string(nil), job.DocumentIDs...)
	}
	if job.ResultsSummary != nil {
		summary := *job.ResultsSummary
		job.ResultsSummary = &summary
	}
	return job
}
