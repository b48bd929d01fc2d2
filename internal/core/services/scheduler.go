package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// runRetention is the number of runs kept per task.
	runRetention = 100
	defaultTick  = time.Minute
	// autoAnalysisParallelism bounds how many projects are analysed at once.
	autoAnalysisParallelism = 2
)

// taskBody does one run of a task and reports how many things it touched.
type taskBody func(context.Context) (affected int, detail string, err error)

// Scheduler runs the built-in tasks on their intervals. Task state and run
// history live in the SchedulerStore so they survive restarts.
type Scheduler struct {
	config     domain.SchedulerConfig
	store      driven.SchedulerStore
	supervisor driving.TimeoutSupervisor
	jobs       driving.JobService
	staleness  driving.StalenessDetector
	docs       driven.DocumentStore
	bodies     map[string]taskBody
	tick       time.Duration
	now        func() time.Time

	mu      sync.Mutex
	running bool
	busy    map[string]bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler wires the tasks. jobs, staleness and docs serve only
// auto-analysis and may be nil.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	supervisor driving.TimeoutSupervisor,
	jobs driving.JobService,
	staleness driving.StalenessDetector,
	docs driven.DocumentStore,
) *Scheduler {
	s := &Scheduler{
		config:     config,
		store:      store,
		supervisor: supervisor,
		jobs:       jobs,
		staleness:  staleness,
		docs:       docs,
		tick:       defaultTick,
		now:        time.Now,
		busy:       make(map[string]bool),
	}
	s.bodies = map[string]taskBody{
		domain.TaskIDJobTimeoutSweep: s.runTimeoutSweep,
		domain.TaskIDAutoAnalysis:    s.runAutoAnalysis,
	}
	return s
}

// Start blocks until Stop (returning nil) or until ctx is done (returning
// its error). A second concurrent Start returns nil at once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	stop := make(chan struct{})
	s.stopCh = stop
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Info("scheduler: disabled")
	} else {
		if err := s.initialiseTasks(ctx); err != nil {
			logger.Warn("scheduler: initialising tasks: %v", err)
		}
		s.checkAndRunDueTasks(ctx)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			if s.config.Enabled {
				s.checkAndRunDueTasks(ctx)
			}
		}
	}
}

// Stop ends the loop and waits for task runs in flight.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	var errs []error
	for _, id := range domain.BuiltinTaskIDs() {
		if err := s.ensureTask(ctx, id, domain.TaskName(id), s.config.GetTaskConfig(id)); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ensureTask reconciles a stored task with its configuration. Tasks are only
// created when enabled; an existing task that is switched off stays stored,
// disabled. The sweep starts due so jobs orphaned by a crash fail at
// startup; other new tasks wait one interval.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	switch {
	case err != nil:
		return err
	case task == nil && !cfg.Enabled:
		return nil
	case task == nil:
		task = &domain.ScheduledTask{ID: id, Name: name, Interval: cfg.Interval}
		if id != domain.TaskIDJobTimeoutSweep {
			task.NextRun = s.now().Add(cfg.Interval)
		}
	case cfg.Interval > 0 && cfg.Interval != task.Interval:
		task.Interval = cfg.Interval
		task.NextRun = s.now().Add(cfg.Interval)
	}
	task.Enabled = cfg.Enabled
	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: listing tasks: %v", err)
		return
	}
	now := s.now()
	for i := range tasks {
		if tasks[i].Due(now) {
			s.runTask(ctx, &tasks[i])
		}
	}
}

// runTask starts the task in the background unless its previous run is
// still going.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.busy[task.ID] {
		s.mu.Unlock()
		logger.Debug("scheduler: %s still running, skipping", task.ID)
		return
	}
	s.busy[task.ID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.busy, task.ID)
			s.mu.Unlock()
		}()
		s.execute(ctx, task)
	}()
}

// execute runs the task once and records the run and the task's new state.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) {
	body, ok := s.bodies[task.ID]
	if !ok {
		logger.Warn("scheduler: no task named %s", task.ID)
		return
	}

	run := domain.TaskRun{TaskID: task.ID, StartedAt: s.now()}
	var err error
	run.Affected, run.Detail, err = body(ctx)
	run.EndedAt = s.now()

	task.LastRun = run.StartedAt
	task.NextRun = run.EndedAt.Add(task.Interval)
	task.LastError = ""
	if err != nil {
		run.Err = err.Error()
		task.LastError = run.Err
		logger.Warn("scheduler: %s failed: %v", task.ID, err)
	} else {
		task.LastSuccess = run.EndedAt
		logger.Debug("scheduler: %s: %s", task.ID, run.Detail)
	}
	s.record(ctx, task, &run)
}

func (s *Scheduler) record(ctx context.Context, task *domain.ScheduledTask, run *domain.TaskRun) {
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: saving task %s: %v", task.ID, err)
	}
	if err := s.store.AppendRun(ctx, run); err != nil {
		logger.Warn("scheduler: recording run of %s: %v", task.ID, err)
	}
	if err := s.store.TrimRuns(ctx, runRetention); err != nil {
		logger.Warn("scheduler: trimming run history: %v", err)
	}
}

// Tasks lists every stored task with up to recent of its newest runs.
func (s *Scheduler) Tasks(ctx context.Context, recent int) ([]domain.TaskStatus, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	out := make([]domain.TaskStatus, len(tasks))
	for i, task := range tasks {
		runs, err := s.store.RecentRuns(ctx, task.ID, recent)
		if err != nil {
			return nil, fmt.Errorf("runs of %s: %w", task.ID, err)
		}
		out[i] = domain.TaskStatus{Task: task, Runs: runs}
	}
	return out, nil
}

func (s *Scheduler) runTimeoutSweep(ctx context.Context) (int, string, error) {
	if s.supervisor == nil {
		return 0, "no supervisor", nil
	}
	res, err := s.supervisor.Sweep(ctx)
	return res.JobsExpired + res.EnhancementsExpired, domain.SweepDetail(res.JobsExpired, res.EnhancementsExpired), err
}

// runAutoAnalysis runs an incremental job to completion for each project
// with stale documents, a few projects at a time. Projects that already have
// an active job are left alone. Affected counts jobs that reached done.
func (s *Scheduler) runAutoAnalysis(ctx context.Context) (int, string, error) {
	if s.jobs == nil || s.staleness == nil || s.docs == nil {
		return 0, "analysis not configured", nil
	}

	projects, err := s.docs.ListProjects(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("listing projects: %w", err)
	}

	var (
		stale, completed atomic.Int64
		mu               sync.Mutex
		errs             []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(autoAnalysisParallelism)
	for _, projectID := range projects {
		g.Go(func() error {
			report, err := s.staleness.Detect(ctx, projectID)
			if err != nil {
				fail(fmt.Errorf("detect %s: %w", projectID, err))
				return nil
			}
			if !report.NeedsProcessing() {
				return nil
			}
			stale.Add(1)

			done, err := s.analyse(ctx, projectID)
			if err != nil {
				fail(err)
			} else if done {
				completed.Add(1)
			}
			return nil
		})
	}
	// Per-project failures go to errs, so every closure returns nil and
	// Wait only reports a failure of the group itself.
	if err := g.Wait(); err != nil {
		fail(err)
	}

	c := int(completed.Load())
	return c, domain.AnalysisDetail(int(stale.Load()), c), errors.Join(errs...)
}

// analyse reports false with no error when the project is already busy.
func (s *Scheduler) analyse(ctx context.Context, projectID string) (bool, error) {
	job, err := s.jobs.Start(ctx, projectID, domain.JobTypeIncremental, map[string]string{"trigger": "scheduler"})
	if errors.Is(err, domain.ErrJobAlreadyActive) {
		logger.Debug("scheduler: %s already has an active job", projectID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("start %s: %w", projectID, err)
	}

	final, err := s.jobs.Run(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("run %s: %w", projectID, err)
	}
	if final.State != domain.JobStateDone {
		return false, fmt.Errorf("job %s for %s failed: %s", job.ID, projectID, final.ErrorDetails)
	}
	return true, nil
}
