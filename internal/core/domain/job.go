package domain

import (
	"fmt"
	"time"
)

// JobState is a stage in the analysis lifecycle.
type JobState string

// Lifecycle states, in order. Failed is reachable from any non-terminal state.
const (
	JobStatePending    JobState = "pending"
	JobStateThinking   JobState = "thinking"
	JobStateAnalyzing  JobState = "analyzing"
	JobStateExtracting JobState = "extracting"
	JobStateDone       JobState = "done"
	JobStateFailed     JobState = "failed"
)

// nextState maps each non-terminal state to its single forward successor.
var nextState = map[JobState]JobState{
	JobStatePending:    JobStateThinking,
	JobStateThinking:   JobStateAnalyzing,
	JobStateAnalyzing:  JobStateExtracting,
	JobStateExtracting: JobStateDone,
}

// IsValid returns true if the state is recognised.
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateThinking, JobStateAnalyzing,
		JobStateExtracting, JobStateDone, JobStateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for done and failed.
func (s JobState) IsTerminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// IsActive returns true while a job still occupies its project.
func (s JobState) IsActive() bool {
	return s.IsValid() && !s.IsTerminal()
}

// Next returns the forward successor of s.
func (s JobState) Next() (JobState, error) {
	next, ok := nextState[s]
	if !ok {
		return "", fmt.Errorf("%w: %s has no successor", ErrJobTerminal, s)
	}
	return next, nil
}

// CanTransition reports whether moving from s to to is allowed.
func (s JobState) CanTransition(to JobState) bool {
	if s.IsTerminal() || !s.IsValid() {
		return false
	}
	if to == JobStateFailed {
		return true
	}
	return nextState[s] == to
}

// String returns the string representation.
func (s JobState) String() string {
	return string(s)
}

// ActiveJobStates lists every non-terminal state.
func ActiveJobStates() []JobState {
	return []JobState{JobStatePending, JobStateThinking, JobStateAnalyzing, JobStateExtracting}
}

// JobType selects which documents a job covers.
type JobType string

const (
	// JobTypeFullProject analyses every eligible document.
	JobTypeFullProject JobType = "full_project"

	// JobTypeIncremental analyses only stale documents.
	JobTypeIncremental JobType = "incremental"
)

// IsValid returns true if the job type is recognised.
func (t JobType) IsValid() bool {
	return t == JobTypeFullProject || t == JobTypeIncremental
}

// ProcessingJob is one analysis run over a project's documents.
type ProcessingJob struct {
	// ID is the unique identifier for the job.
	ID string

	// ProjectID is the project being analysed.
	ProjectID string

	// Type selects full or incremental processing.
	Type JobType

	// State is the current lifecycle stage.
	State JobState

	// Options is opaque caller configuration.
	Options map[string]string

	// DocumentIDs are the documents included in this run, fixed at thinking.
	DocumentIDs []string

	// ResultsSummary is written on success.
	ResultsSummary *JobSummary

	// ErrorDetails is written on failure.
	ErrorDetails string

	// CreatedAt is when the job was started.
	CreatedAt time.Time

	// UpdatedAt is when the job last changed state.
	UpdatedAt time.Time
}

// JobSummary describes what a successful run produced.
type JobSummary struct {
	DocumentsProcessed int     `json:"documentsProcessed"`
	ChunksProcessed    int     `json:"chunksProcessed"`
	ExtractionsFound   int     `json:"extractionsFound"`
	ItemsCreated       int     `json:"itemsCreated"`
	ItemsMerged        int     `json:"itemsMerged"`
	ItemsDiscarded     int     `json:"itemsDiscarded"`
	Conflicts          int     `json:"conflicts"`
	ConfidenceAverage  float64 `json:"confidenceAverage"`
	DurationMillis     int64   `json:"durationMillis"`
}

// JobEvent is broadcast to project subscribers on every state change.
type JobEvent struct {
	ProjectID string    `json:"projectId"`
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	Previous  JobState  `json:"previous,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// StatusReport is the job status query surface for a project.
type StatusReport struct {
	ProjectID               string         `json:"projectId"`
	IsProcessing            bool           `json:"isProcessing"`
	LastProcessedAt         *time.Time     `json:"lastProcessedAt,omitempty"`
	LowConfidenceFactsCount int            `json:"lowConfidenceFactsCount"`
	ErrorCount              int            `json:"errorCount"`
	HasErrors               bool           `json:"hasErrors"`
	HasUnanalyzedContent    bool           `json:"hasUnanalyzedContent"`
	UnanalyzedChapterCount  int            `json:"unanalyzedChapterCount"`
	StalenessUnknown        bool           `json:"stalenessUnknown"`
	CurrentJob              *ProcessingJob `json:"currentJob,omitempty"`
}
