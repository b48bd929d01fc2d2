package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure JobService implements the interface.
var _ driving.JobService = (*JobService)(nil)

// JobService drives processing jobs from pending to done.
//
// Each stage transition is persisted with a compare-and-set on the state the
// stage started from, so a job the timeout supervisor has already failed is
// never revived by a late gateway response.
type JobService struct {
	jobStore       driven.JobStore
	docStore       driven.DocumentStore
	knowledgeStore driven.KnowledgeStore
	committer      driven.RunCommitter
	pipeline       driven.PostProcessorPipeline
	gateway        driven.ExtractionGateway
	staleness      driving.StalenessDetector
	arbiter        driving.MergeArbiter
	audit          driven.MergeAuditLog
	settings       domain.PipelineSettings

	bus        driven.StatusBus
	supervisor driving.TimeoutSupervisor
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	runs     map[string]*runState
}

// maxCommitAttempts bounds how often a run replays its merges onto knowledge
// that was edited while it was arbitrating.
const maxCommitAttempts = 3

// runState carries stage outputs between Advance calls.
type runState struct {
	chunks     []domain.Chunk
	hashes     map[string]string
	characters []domain.ExtractedFact
	result     *domain.ExtractionResult
	started    time.Time
}

// NewJobService creates a new job service.
func NewJobService(
	jobStore driven.JobStore,
	docStore driven.DocumentStore,
	knowledgeStore driven.KnowledgeStore,
	committer driven.RunCommitter,
	pipeline driven.PostProcessorPipeline,
	gateway driven.ExtractionGateway,
	staleness driving.StalenessDetector,
	arbiter driving.MergeArbiter,
	settings domain.PipelineSettings,
) *JobService {
	return &JobService{
		jobStore:       jobStore,
		docStore:       docStore,
		knowledgeStore: knowledgeStore,
		committer:      committer,
		pipeline:       pipeline,
		gateway:        gateway,
		staleness:      staleness,
		arbiter:        arbiter,
		settings:       settings,
		now:            time.Now,
		inflight:       make(map[string]struct{}),
		runs:           make(map[string]*runState),
	}
}

// SetStatusBus enables job event publishing.
func (s *JobService) SetStatusBus(bus driven.StatusBus) {
	s.bus = bus
}

// SetAuditLog records merges a run had to drop because their target was
// taken over by a person while the run was arbitrating.
func (s *JobService) SetAuditLog(audit driven.MergeAuditLog) {
	s.audit = audit
}

// SetSupervisor arms a live timeout for every started job.
func (s *JobService) SetSupervisor(supervisor driving.TimeoutSupervisor) {
	s.supervisor = supervisor
}

// Start creates a pending job for the project.
// A second request while a job is active is rejected, not queued.
func (s *JobService) Start(
	ctx context.Context,
	projectID string,
	jobType domain.JobType,
	options map[string]string,
) (*domain.ProcessingJob, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}
	if !jobType.IsValid() {
		return nil, fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidInput, jobType)
	}

	now := s.now()
	job := &domain.ProcessingJob{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Type:      jobType,
		State:     domain.JobStatePending,
		Options:   options,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("start job for %s: %w", projectID, err)
	}

	logger.Info("job %s: started %s analysis of %s", job.ID, jobType, projectID)
	s.publish(ctx, job, "")

	if s.supervisor != nil {
		s.supervisor.WatchJob(*job)
	}

	return job, nil
}

// Get returns a job by ID.
func (s *JobService) Get(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	return s.jobStore.GetJob(ctx, jobID)
}

// History lists recent jobs of a project, newest first.
func (s *JobService) History(ctx context.Context, projectID string, limit int) ([]domain.ProcessingJob, error) {
	return s.jobStore.ListJobs(ctx, projectID, limit)
}

// Advance moves the job one stage forward.
//
// Gateway failures do not surface as errors: the job is moved to failed with
// error_details and returned. Errors are returned for local problems such as
// an unknown or terminal job, or a concurrent writer.
func (s *JobService) Advance(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	if !s.acquire(jobID) {
		return nil, fmt.Errorf("%w: job %s is already advancing", domain.ErrStateConflict, jobID)
	}
	defer s.release(jobID)

	job, err := s.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job.State.IsTerminal() {
		s.dropRun(jobID)
		return job, fmt.Errorf("advance job %s: %w", jobID, domain.ErrJobTerminal)
	}

	from := job.State
	switch from {
	case domain.JobStatePending:
		err = s.think(ctx, job)
	case domain.JobStateThinking:
		err = s.analyze(ctx, job)
	case domain.JobStateAnalyzing:
		err = s.extract(ctx, job)
	case domain.JobStateExtracting:
		return s.complete(ctx, job)
	default:
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidTransition, from)
	}

	if err != nil {
		if isStageFailure(err) {
			return s.fail(ctx, job, from, err)
		}
		return nil, err
	}

	return s.transition(ctx, job, from)
}

// Run advances the job until it is terminal.
func (s *JobService) Run(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	for {
		job, err := s.Advance(ctx, jobID)
		if err != nil {
			return job, err
		}
		if job.State.IsTerminal() {
			return job, nil
		}
	}
}

// Status reports the project's processing status.
func (s *JobService) Status(ctx context.Context, projectID string) (*domain.StatusReport, error) {
	latest, err := s.jobStore.LatestJob(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("latest job: %w", err)
	}

	report := &domain.StatusReport{
		ProjectID:  projectID,
		CurrentJob: latest,
	}
	if latest != nil {
		report.IsProcessing = latest.State.IsActive()
		report.HasErrors = latest.State == domain.JobStateFailed
	}

	completed, err := s.jobStore.LastCompletedJob(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("last completed job: %w", err)
	}
	if completed != nil {
		at := completed.UpdatedAt
		report.LastProcessedAt = &at
	}

	if report.ErrorCount, err = s.jobStore.CountJobs(ctx, projectID, domain.JobStateFailed); err != nil {
		return nil, fmt.Errorf("count failed jobs: %w", err)
	}

	report.LowConfidenceFactsCount, err = s.knowledgeStore.CountLowConfidence(ctx, projectID, s.settings.LowConfidenceThreshold)
	if err != nil {
		return nil, fmt.Errorf("count low confidence: %w", err)
	}

	stale, err := s.staleness.Detect(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("detect staleness: %w", err)
	}
	report.StalenessUnknown = stale.Status == domain.StalenessUnknown
	report.UnanalyzedChapterCount = stale.Count
	report.HasUnanalyzedContent = stale.NeedsProcessing()

	return report, nil
}

// stageError marks failures that end the job rather than the call.
type stageError struct {
	err error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func isStageFailure(err error) bool {
	var se *stageError
	return errors.As(err, &se)
}

// think selects and chunks the documents of the run.
func (s *JobService) think(ctx context.Context, job *domain.ProcessingJob) error {
	docs, err := s.selectDocuments(ctx, job)
	if err != nil {
		return &stageError{err: err}
	}

	run, err := s.prepare(ctx, docs)
	if err != nil {
		return &stageError{err: err}
	}
	run.started = s.now()

	job.DocumentIDs = make([]string, len(docs))
	for i, doc := range docs {
		job.DocumentIDs[i] = doc.ID
	}

	s.setRun(job.ID, run)
	logger.Debug("job %s: %d documents, %d chunks", job.ID, len(docs), len(run.chunks))
	return nil
}

// analyze runs the character pass.
func (s *JobService) analyze(ctx context.Context, job *domain.ProcessingJob) error {
	run, err := s.runFor(ctx, job)
	if err != nil {
		return &stageError{err: err}
	}

	res, err := s.callGateway(ctx, job, run, domain.ExtractCharacters, nil)
	if err != nil {
		return err
	}
	run.characters = res.Characters
	return nil
}

// extract runs the comprehensive pass, seeded with the characters found.
func (s *JobService) extract(ctx context.Context, job *domain.ProcessingJob) error {
	run, err := s.runFor(ctx, job)
	if err != nil {
		return &stageError{err: err}
	}

	res, err := s.callGateway(ctx, job, run, domain.ExtractComprehensive, run.characters)
	if err != nil {
		return err
	}
	if len(res.Characters) == 0 {
		res.Characters = run.characters
	}
	run.result = res
	return nil
}

// complete arbitrates every candidate and commits knowledge, fingerprints
// and the done state as one unit.
func (s *JobService) complete(ctx context.Context, job *domain.ProcessingJob) (*domain.ProcessingJob, error) {
	from := job.State
	run := s.getRun(job.ID)
	if run == nil || run.result == nil {
		return s.fail(ctx, job, from, errors.New("extraction results were lost; start a new analysis"))
	}

	rec, err := s.reconcile(ctx, job, run)
	if err != nil {
		return s.fail(ctx, job, from, err)
	}
	summary := rec.summary

	done := *job
	done.State = domain.JobStateDone
	done.UpdatedAt = s.now()
	done.ResultsSummary = summary
	rec.commit.Job = done
	rec.commit.ExpectedState = from

	err = s.committer.CommitRun(ctx, rec.commit)
	for attempt := 1; errors.Is(err, domain.ErrKnowledgeChanged) && attempt < maxCommitAttempts; attempt++ {
		logger.Info("job %s: knowledge edited during arbitration, replaying merges", job.ID)
		if err = s.rebase(ctx, job, &rec); err != nil {
			break
		}
		err = s.committer.CommitRun(ctx, rec.commit)
	}
	if err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			s.dropRun(job.ID)
			return nil, fmt.Errorf("commit job %s: %w", job.ID, err)
		}
		return s.fail(ctx, job, from, fmt.Errorf("commit results: %w", err))
	}

	s.dropRun(job.ID)
	logger.Info("job %s: done, %d created, %d merged, %d discarded",
		job.ID, summary.ItemsCreated, summary.ItemsMerged, summary.ItemsDiscarded)
	s.publish(ctx, &done, from)
	return &done, nil
}

// pendingMerge is one arbitration outcome folded into an existing item.
type pendingMerge struct {
	cand     domain.Candidate
	decision domain.MergeDecision
}

// reconciliation is the knowledge side of a finished run.
type reconciliation struct {
	commit  domain.RunCommit
	summary *domain.JobSummary
	// merges lists, per updated item, the merges folded into it in order.
	merges map[string][]pendingMerge
}

// reconcile turns extraction results into knowledge writes.
func (s *JobService) reconcile(
	ctx context.Context,
	job *domain.ProcessingJob,
	run *runState,
) (reconciliation, error) {
	now := s.now()
	scope := driving.AuditScope{ProjectID: job.ProjectID, JobID: job.ID}
	summary := &domain.JobSummary{
		DocumentsProcessed: len(job.DocumentIDs),
		ChunksProcessed:    run.result.ProcessingStats.ChunksProcessed,
		ExtractionsFound:   run.result.Count(),
		Conflicts:          len(run.result.Conflicts),
		ConfidenceAverage:  run.result.ProcessingStats.ConfidenceAverage,
		DurationMillis:     now.Sub(run.started).Milliseconds(),
	}

	var creates []domain.KnowledgeItem
	updates := make(map[string]*domain.KnowledgeItem)
	var updateOrder []string
	base := make(map[string]time.Time)
	merges := make(map[string][]pendingMerge)

	for _, cand := range run.result.Candidates() {
		nearby, err := s.knowledgeStore.FindNearby(ctx, job.ProjectID, cand.Category, cand.Name)
		if err != nil {
			return reconciliation{}, fmt.Errorf("find nearby %q: %w", cand.Name, err)
		}
		// Prefer this run's pending version of an item over the stored one.
		for i := range nearby {
			if pending, ok := updates[nearby[i].ID]; ok {
				nearby[i] = *pending
			}
		}
		for i := range creates {
			if creates[i].Category == cand.Category && domain.NamesResemble(creates[i].Name, cand.Name) {
				nearby = append([]domain.KnowledgeItem{creates[i]}, nearby...)
			}
		}

		decision := s.arbiter.Decide(ctx, scope, cand, nearby)

		switch decision.Action {
		case domain.MergeActionMerge:
			summary.ItemsMerged++
			merged := mergeInto(nearby[0], cand, decision, now)
			if idx := indexOfItem(creates, merged.ID); idx >= 0 {
				creates[idx] = merged
				continue
			}
			if _, seen := updates[merged.ID]; !seen {
				updateOrder = append(updateOrder, merged.ID)
				base[merged.ID] = nearby[0].UpdatedAt
			}
			updates[merged.ID] = &merged
			merges[merged.ID] = append(merges[merged.ID], pendingMerge{cand: cand, decision: decision})
		case domain.MergeActionDiscard:
			summary.ItemsDiscarded++
		default:
			summary.ItemsCreated++
			creates = append(creates, domain.KnowledgeItem{
				ID:               uuid.New().String(),
				ProjectID:        job.ProjectID,
				Category:         cand.Category,
				Name:             cand.Name,
				Description:      cand.Description,
				Confidence:       cand.Confidence,
				ExtractionMethod: cand.Method,
				Evidence:         cand.Evidence,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}
	}

	commit := domain.RunCommit{Create: creates, Base: base}
	for _, id := range updateOrder {
		commit.Update = append(commit.Update, *updates[id])
	}
	for _, docID := range job.DocumentIDs {
		commit.Fingerprints = append(commit.Fingerprints, domain.Fingerprint{
			DocumentID:  docID,
			ProjectID:   job.ProjectID,
			Hash:        run.hashes[docID],
			ProcessedAt: now,
			JobID:       job.ID,
		})
	}

	return reconciliation{commit: commit, summary: summary, merges: merges}, nil
}

// rebase re-reads the update targets after a commit found one of them
// changed. Merges are replayed onto a changed row unless a person now owns
// it or deleted it; then the person's version stands and the merges are
// recorded as discarded.
func (s *JobService) rebase(ctx context.Context, job *domain.ProcessingJob, rec *reconciliation) error {
	var update []domain.KnowledgeItem
	for _, planned := range rec.commit.Update {
		current, err := s.knowledgeStore.GetItem(ctx, planned.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.dropMerges(ctx, job, rec, planned.ID, "target was deleted during the run")
			continue
		case err != nil:
			return fmt.Errorf("reload item %s: %w", planned.ID, err)
		}

		if current.UpdatedAt.Equal(rec.commit.Base[planned.ID]) {
			update = append(update, planned)
			continue
		}
		if current.ExtractionMethod.IsUserOwned() {
			s.dropMerges(ctx, job, rec, planned.ID, "target was edited by a person during the run")
			continue
		}

		merged := *current
		now := s.now()
		for _, m := range rec.merges[planned.ID] {
			merged = mergeInto(merged, m.cand, m.decision, now)
		}
		rec.commit.Base[planned.ID] = current.UpdatedAt
		update = append(update, merged)
	}
	rec.commit.Update = update
	return nil
}

func (s *JobService) dropMerges(ctx context.Context, job *domain.ProcessingJob, rec *reconciliation, id, reason string) {
	logger.Info("job %s: merge into %s skipped, %s", job.ID, id, reason)
	for _, m := range rec.merges[id] {
		rec.summary.ItemsMerged--
		rec.summary.ItemsDiscarded++
		if s.audit == nil {
			continue
		}
		entry := domain.MergeAuditEntry{
			ID:            uuid.New().String(),
			ProjectID:     job.ProjectID,
			JobID:         job.ID,
			CandidateName: m.cand.Name,
			Category:      m.cand.Category,
			TargetID:      id,
			Action:        domain.MergeActionDiscard,
			Reason:        reason,
			Confidence:    m.decision.Confidence,
			DecidedAt:     s.now(),
		}
		if err := s.audit.AppendDecision(ctx, entry); err != nil {
			logger.Warn("merge audit for %q: %v", m.cand.Name, err)
		}
	}
	delete(rec.merges, id)
	delete(rec.commit.Base, id)
}

// mergeInto folds a candidate into an existing item.
// Human-owned items keep their confidence and extraction method.
func mergeInto(target domain.KnowledgeItem, cand domain.Candidate, d domain.MergeDecision, now time.Time) domain.KnowledgeItem {
	merged := target
	if d.Merged != nil {
		if d.Merged.Name != "" {
			merged.Name = d.Merged.Name
		}
		if d.Merged.Description != "" {
			merged.Description = d.Merged.Description
		}
		if d.Merged.Evidence != "" {
			merged.Evidence = d.Merged.Evidence
		}
	} else if merged.Description == "" {
		merged.Description = cand.Description
	}
	if (d.Merged == nil || d.Merged.Evidence == "") && cand.Evidence != "" &&
		!strings.Contains(merged.Evidence, cand.Evidence) {
		if merged.Evidence != "" {
			merged.Evidence += "\n"
		}
		merged.Evidence += cand.Evidence
	}
	if !target.ExtractionMethod.IsUserOwned() && cand.Confidence > merged.Confidence {
		merged.Confidence = cand.Confidence
	}
	merged.UpdatedAt = now
	return merged
}

func indexOfItem(items []domain.KnowledgeItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// selectDocuments picks the documents a job covers.
// Incremental runs with unknown staleness fall back to every eligible document.
func (s *JobService) selectDocuments(ctx context.Context, job *domain.ProcessingJob) ([]domain.Document, error) {
	all, err := s.docStore.ListDocuments(ctx, job.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var want map[string]bool
	if job.Type == domain.JobTypeIncremental {
		report, err := s.staleness.Detect(ctx, job.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("detect staleness: %w", err)
		}
		if report.Status == domain.StalenessUnknown {
			logger.Warn("job %s: staleness unknown (%s), processing all documents", job.ID, report.Reason)
		}
		want = make(map[string]bool, len(report.DocumentIDs))
		for _, id := range report.DocumentIDs {
			want[id] = true
		}
	}

	docs := make([]domain.Document, 0, len(all))
	for _, doc := range all {
		if !doc.IsEligible() {
			continue
		}
		if want != nil && !want[doc.ID] {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// prepare chunks documents and records the hash each was analysed at.
func (s *JobService) prepare(ctx context.Context, docs []domain.Document) (*runState, error) {
	run := &runState{hashes: make(map[string]string, len(docs))}
	for i := range docs {
		doc := docs[i]
		run.hashes[doc.ID] = domain.ContentHash(doc.Content)
		chunks, err := s.pipeline.Process(ctx, &doc)
		if err != nil {
			return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}
		run.chunks = append(run.chunks, chunks...)
	}
	return run, nil
}

// runFor returns the cached run state, rebuilding chunks from the job's
// documents if this process did not run the earlier stages.
func (s *JobService) runFor(ctx context.Context, job *domain.ProcessingJob) (*runState, error) {
	if run := s.getRun(job.ID); run != nil {
		return run, nil
	}

	docs := make([]domain.Document, 0, len(job.DocumentIDs))
	for _, id := range job.DocumentIDs {
		doc, err := s.docStore.GetDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reload document %s: %w", id, err)
		}
		docs = append(docs, *doc)
	}
	run, err := s.prepare(ctx, docs)
	if err != nil {
		return nil, err
	}
	run.started = job.UpdatedAt
	s.setRun(job.ID, run)
	return run, nil
}

func (s *JobService) callGateway(
	ctx context.Context,
	job *domain.ProcessingJob,
	run *runState,
	extraction domain.ExtractionType,
	existing []domain.ExtractedFact,
) (*domain.ExtractionResult, error) {
	if len(run.chunks) == 0 {
		return &domain.ExtractionResult{}, nil
	}

	req := domain.ExtractionRequest{
		Chunks:            make([]domain.ChunkRef, len(run.chunks)),
		ProjectID:         job.ProjectID,
		ExtractionType:    extraction,
		ExistingKnowledge: existing,
	}
	for i, c := range run.chunks {
		req.Chunks[i] = domain.ChunkRef{ID: c.ID, Content: c.Content, ChunkIndex: c.Index, DocumentID: c.DocumentID}
	}

	res, err := s.gateway.Extract(ctx, req)
	if err != nil {
		return nil, &stageError{err: fmt.Errorf("%s extraction: %w", extraction, err)}
	}
	return res, nil
}

// transition persists a forward move from the given state.
func (s *JobService) transition(ctx context.Context, job *domain.ProcessingJob, from domain.JobState) (*domain.ProcessingJob, error) {
	next, err := from.Next()
	if err != nil {
		return nil, err
	}
	job.State = next
	job.UpdatedAt = s.now()

	if err := s.jobStore.UpdateJob(ctx, job, from); err != nil {
		s.dropRun(job.ID)
		return nil, fmt.Errorf("persist %s -> %s: %w", from, next, err)
	}

	logger.Debug("job %s: %s -> %s", job.ID, from, next)
	s.publish(ctx, job, from)
	return job, nil
}

// fail records the cause and moves the job to failed. If another writer
// got there first, the stored job is returned unchanged.
func (s *JobService) fail(
	ctx context.Context,
	job *domain.ProcessingJob,
	from domain.JobState,
	cause error,
) (*domain.ProcessingJob, error) {
	s.dropRun(job.ID)

	job.State = domain.JobStateFailed
	job.ErrorDetails = cause.Error()
	job.UpdatedAt = s.now()

	if err := s.jobStore.UpdateJob(ctx, job, from); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			current, getErr := s.jobStore.GetJob(ctx, job.ID)
			if getErr != nil {
				return nil, fmt.Errorf("reload job: %w", getErr)
			}
			return current, nil
		}
		return nil, fmt.Errorf("persist failure: %w", err)
	}

	logger.Warn("job %s: failed in %s: %v", job.ID, from, cause)
	s.publish(ctx, job, from)
	return job, nil
}

func (s *JobService) publish(ctx context.Context, job *domain.ProcessingJob, previous domain.JobState) {
	if s.bus == nil {
		return
	}
	event := domain.JobEvent{
		ProjectID: job.ProjectID,
		JobID:     job.ID,
		State:     job.State,
		Previous:  previous,
		Error:     job.ErrorDetails,
		At:        job.UpdatedAt,
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		logger.Warn("job %s: publish %s: %v", job.ID, job.State, err)
	}
}

func (s *JobService) acquire(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[jobID]; busy {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *JobService) release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, jobID)
}

func (s *JobService) getRun(jobID string) *runState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[jobID]
}

func (s *JobService) setRun(jobID string, run *runState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[jobID] = run
}

func (s *JobService) dropRun(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, jobID)
}
