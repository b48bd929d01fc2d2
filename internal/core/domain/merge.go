package domain

import "time"

// MergeAction is the outcome of merge arbitration.
type MergeAction string

// Merge actions.
const (
	MergeActionMerge        MergeAction = "merge"
	MergeActionDiscard      MergeAction = "discard"
	MergeActionKeepDistinct MergeAction = "keep_distinct"
)

// IsValid returns true if the action is recognised.
func (a MergeAction) IsValid() bool {
	return a == MergeActionMerge || a == MergeActionDiscard || a == MergeActionKeepDistinct
}

// DefaultMergeConfidence is used when the reasoning service omits confidence
// or sends something outside [0,1].
const DefaultMergeConfidence = 0.7

// Candidate is a freshly extracted fact awaiting arbitration.
type Candidate struct {
	Category    Category
	Name        string
	Description string
	Evidence    string
	Confidence  float64
	Method      ExtractionMethod
}

// MergedData is the combined payload proposed for a merge.
type MergedData struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Evidence    string `json:"evidence,omitempty"`
}

// MergeDecision is the ephemeral result of arbitration.
type MergeDecision struct {
	Action     MergeAction
	Reason     string
	Confidence float64
	Merged     *MergedData

	// TargetID is the existing item a merge or discard refers to.
	TargetID string

	// Fallback is true when the decision came from the safety default
	// rather than the reasoning service.
	Fallback bool
}

// MergeAuditEntry is the persisted trace of one decision.
type MergeAuditEntry struct {
	ID            string
	ProjectID     string
	JobID         string
	CandidateName string
	Category      Category
	TargetID      string
	Action        MergeAction
	Reason        string
	Confidence    float64
	Fallback      bool
	DecidedAt     time.Time
}

// RunCommit is everything the extracting stage writes as one unit:
// knowledge, fingerprints and the job's move to done. Either all of it is
// persisted or none of it is. The job write is conditional on the stored
// state still being ExpectedState.
type RunCommit struct {
	Job           ProcessingJob
	ExpectedState JobState
	Create        []KnowledgeItem
	Update        []KnowledgeItem
	Fingerprints  []Fingerprint

	// Base holds the UpdatedAt each Update target had when the run read it.
	// A target whose stored UpdatedAt differs fails the whole commit with
	// ErrKnowledgeChanged.
	Base map[string]time.Time
}
