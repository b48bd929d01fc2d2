package domain

import (
	"fmt"
	"time"
)

// ChangeType classifies an edit between an original and an enhanced text.
type ChangeType string

// Change types.
const (
	ChangeInsertion      ChangeType = "insertion"
	ChangeDeletion       ChangeType = "deletion"
	ChangeReplacement    ChangeType = "replacement"
	ChangeGrammar        ChangeType = "grammar"
	ChangeStructure      ChangeType = "structure"
	ChangeDialogue       ChangeType = "dialogue"
	ChangeStyle          ChangeType = "style"
	ChangePunctuation    ChangeType = "punctuation"
	ChangeWhitespace     ChangeType = "whitespace"
	ChangeCapitalization ChangeType = "capitalization"
)

// UserDecision is the reviewer's verdict on a change.
type UserDecision string

// User decisions.
const (
	DecisionPending  UserDecision = "pending"
	DecisionAccepted UserDecision = "accepted"
	DecisionRejected UserDecision = "rejected"
)

// IsValid returns true if the decision is recognised.
func (d UserDecision) IsValid() bool {
	return d == DecisionPending || d == DecisionAccepted || d == DecisionRejected
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// ChangeRecord is one localised edit, addressable in both the original and
// the enhanced coordinate spaces. Positions are byte offsets frozen against
// the exact text pair the record was computed from.
type ChangeRecord struct {
	ID            string
	EnhancementID string
	Type          ChangeType
	OriginalText  string
	EnhancedText  string
	Original      Span
	Enhanced      Span
	Confidence    float64
	Decision      UserDecision
	CreatedAt     time.Time
}

// NewChangeRecord builds a pending record and refuses spans that do not
// reproduce the snippets from the given text pair.
func NewChangeRecord(
	id string,
	changeType ChangeType,
	original, enhanced string,
	origSpan, enhSpan Span,
	confidence float64,
) (ChangeRecord, error) {
	rec := ChangeRecord{
		ID:         id,
		Type:       changeType,
		Original:   origSpan,
		Enhanced:   enhSpan,
		Confidence: ClampConfidence(confidence),
		Decision:   DecisionPending,
	}
	if !validSpan(original, origSpan) {
		return ChangeRecord{}, fmt.Errorf("%w: original [%d,%d) outside text of length %d",
			ErrInvalidPositionRange, origSpan.Start, origSpan.End, len(original))
	}
	if !validSpan(enhanced, enhSpan) {
		return ChangeRecord{}, fmt.Errorf("%w: enhanced [%d,%d) outside text of length %d",
			ErrInvalidPositionRange, enhSpan.Start, enhSpan.End, len(enhanced))
	}
	rec.OriginalText = original[origSpan.Start:origSpan.End]
	rec.EnhancedText = enhanced[enhSpan.Start:enhSpan.End]
	if rec.OriginalText == rec.EnhancedText {
		return ChangeRecord{}, fmt.Errorf("%w: spans describe identical text", ErrInvalidPositionRange)
	}
	return rec, nil
}

// Validate checks the record against the text pair it was computed from.
func (c ChangeRecord) Validate(original, enhanced string) error {
	if !validSpan(original, c.Original) || original[c.Original.Start:c.Original.End] != c.OriginalText {
		return fmt.Errorf("%w: original span of change %s", ErrInvalidPositionRange, c.ID)
	}
	if !validSpan(enhanced, c.Enhanced) || enhanced[c.Enhanced.Start:c.Enhanced.End] != c.EnhancedText {
		return fmt.Errorf("%w: enhanced span of change %s", ErrInvalidPositionRange, c.ID)
	}
	return nil
}

func validSpan(text string, s Span) bool {
	return s.Start >= 0 && s.End >= s.Start && s.End <= len(text)
}

// EnhancementStatus is the lifecycle of an enhancement request.
type EnhancementStatus string

// Enhancement statuses.
const (
	EnhancementProcessing EnhancementStatus = "processing"
	EnhancementCompleted  EnhancementStatus = "completed"
	EnhancementFailed     EnhancementStatus = "failed"
)

// IsTerminal returns true once the enhancement finished either way.
func (s EnhancementStatus) IsTerminal() bool {
	return s == EnhancementCompleted || s == EnhancementFailed
}

// Enhancement is an AI rewrite of a document snapshot.
type Enhancement struct {
	ID           string
	DocumentID   string
	ProjectID    string
	Status       EnhancementStatus
	OriginalText string
	EnhancedText string
	ErrorDetails string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
