package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure SupervisorService implements the interface.
var _ driving.TimeoutSupervisor = (*SupervisorService)(nil)

// expiryWriteTimeout bounds the store write made when a live timer fires.
const expiryWriteTimeout = 30 * time.Second

// SupervisorService fails jobs and enhancements that sit in a non-terminal
// state longer than the ceiling.
//
// Two independent paths reach the same outcome: a live timer per watched
// item, and Sweep, which scans storage and also catches items whose process
// died. Expiry changes only the state, with a compare-and-set on the state
// that was observed, so a job that advanced in the meantime is left alone.
type SupervisorService struct {
	jobs         driven.JobStore
	enhancements driven.EnhancementStore
	ceiling      time.Duration
	bus          driven.StatusBus
	now          func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewSupervisorService creates a supervisor with the given ceiling.
// A nil enhancement store limits supervision to jobs.
func NewSupervisorService(jobs driven.JobStore, enhancements driven.EnhancementStore, ceiling time.Duration) *SupervisorService {
	if ceiling <= 0 {
		ceiling = domain.DefaultAppSettings().Pipeline.JobTimeout
	}
	return &SupervisorService{
		jobs:         jobs,
		enhancements: enhancements,
		ceiling:      ceiling,
		now:          time.Now,
		timers:       make(map[string]*time.Timer),
	}
}

// SetStatusBus publishes an event when a job times out.
func (s *SupervisorService) SetStatusBus(bus driven.StatusBus) {
	s.bus = bus
}

// Ceiling returns the configured timeout.
func (s *SupervisorService) Ceiling() time.Duration {
	return s.ceiling
}

// WatchJob arms a live timer for the job.
func (s *SupervisorService) WatchJob(job domain.ProcessingJob) {
	if job.State.IsTerminal() {
		return
	}
	s.arm("job:"+job.ID, s.remaining(job.UpdatedAt), func(ctx context.Context) {
		s.expireJob(ctx, job.ID)
	})
}

// WatchEnhancement arms a live timer for the enhancement.
func (s *SupervisorService) WatchEnhancement(e domain.Enhancement) {
	if e.Status.IsTerminal() || s.enhancements == nil {
		return
	}
	s.arm("enhancement:"+e.ID, s.remaining(e.UpdatedAt), func(ctx context.Context) {
		s.expireEnhancement(ctx, e.ID)
	})
}

// Stop cancels all live timers and waits for firing ones to finish.
func (s *SupervisorService) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Sweep fails every over-ceiling job and enhancement found in storage.
func (s *SupervisorService) Sweep(ctx context.Context) (driving.SweepResult, error) {
	var result driving.SweepResult
	var errs []error

	jobs, err := s.jobs.ListActiveJobs(ctx)
	if err != nil {
		return result, fmt.Errorf("list active jobs: %w", err)
	}
	for _, job := range jobs {
		if !s.expired(job.UpdatedAt) {
			continue
		}
		expired, err := s.failJob(ctx, job)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if expired {
			result.JobsExpired++
		}
	}

	if s.enhancements != nil {
		active, err := s.enhancements.ListActiveEnhancements(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("list active enhancements: %w", err))
		}
		for _, e := range active {
			if !s.expired(e.UpdatedAt) {
				continue
			}
			expired, err := s.failEnhancement(ctx, e)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if expired {
				result.EnhancementsExpired++
			}
		}
	}

	if result.JobsExpired > 0 || result.EnhancementsExpired > 0 {
		logger.Info("sweep: expired %d jobs, %d enhancements", result.JobsExpired, result.EnhancementsExpired)
	}
	return result, errors.Join(errs...)
}

func (s *SupervisorService) expireJob(ctx context.Context, id string) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		logger.Warn("timeout: load job %s: %v", id, err)
		return
	}
	if job.State.IsTerminal() {
		return
	}
	if !s.expired(job.UpdatedAt) {
		// The job advanced since the timer was armed.
		s.WatchJob(*job)
		return
	}
	if _, err := s.failJob(ctx, *job); err != nil {
		logger.Warn("timeout: %v", err)
	}
}

func (s *SupervisorService) expireEnhancement(ctx context.Context, id string) {
	e, err := s.enhancements.GetEnhancement(ctx, id)
	if err != nil {
		logger.Warn("timeout: load enhancement %s: %v", id, err)
		return
	}
	if e.Status.IsTerminal() {
		return
	}
	if !s.expired(e.UpdatedAt) {
		s.WatchEnhancement(*e)
		return
	}
	if _, err := s.failEnhancement(ctx, *e); err != nil {
		logger.Warn("timeout: %v", err)
	}
}

// failJob moves the job to failed if it is still in the observed state.
// It reports false when another writer changed the job first.
func (s *SupervisorService) failJob(ctx context.Context, job domain.ProcessingJob) (bool, error) {
	err := s.jobs.TransitionJob(ctx, job.ID, job.State, domain.JobStateFailed)
	if errors.Is(err, domain.ErrStateConflict) {
		logger.Debug("timeout: job %s moved on from %s", job.ID, job.State)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("expire job %s: %w", job.ID, err)
	}

	logger.Warn("job %s: timed out in %s after %s", job.ID, job.State, s.ceiling)
	if s.bus != nil {
		event := domain.JobEvent{
			ProjectID: job.ProjectID,
			JobID:     job.ID,
			State:     domain.JobStateFailed,
			Previous:  job.State,
			Error:     fmt.Sprintf("timed out after %s", s.ceiling),
			At:        s.now(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			logger.Warn("job %s: publish timeout: %v", job.ID, err)
		}
	}
	return true, nil
}

func (s *SupervisorService) failEnhancement(ctx context.Context, e domain.Enhancement) (bool, error) {
	err := s.enhancements.TransitionEnhancement(ctx, e.ID, e.Status, domain.EnhancementFailed)
	if errors.Is(err, domain.ErrStateConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("expire enhancement %s: %w", e.ID, err)
	}
	logger.Warn("enhancement %s: timed out after %s", e.ID, s.ceiling)
	return true, nil
}

func (s *SupervisorService) expired(updatedAt time.Time) bool {
	return s.now().Sub(updatedAt) >= s.ceiling
}

func (s *SupervisorService) remaining(updatedAt time.Time) time.Duration {
	d := s.ceiling - s.now().Sub(updatedAt)
	if d < 0 {
		return 0
	}
	return d
}

// arm replaces any timer under key.
func (s *SupervisorService) arm(key string, after time.Duration, fire func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(after, func() {
		s.mu.Lock()
		if s.stopped || s.timers[key] != t {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), expiryWriteTimeout)
		defer cancel()
		fire(ctx)
	})
	s.timers[key] = t
}
