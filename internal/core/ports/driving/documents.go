package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// AnalysisState describes a document relative to its fingerprint.
type AnalysisState string

const (
	// AnalysisNew means the document was never analysed.
	AnalysisNew AnalysisState = "new"
	// AnalysisStale means the text changed since the last analysis.
	AnalysisStale AnalysisState = "stale"
	// AnalysisCurrent means the last analysis covers the current text.
	AnalysisCurrent AnalysisState = "current"
	// AnalysisEmpty means the document has no text to analyse.
	AnalysisEmpty AnalysisState = "empty"
)

// DocumentSummary is a document as listed for a project.
type DocumentSummary struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	URI        string        `json:"uri,omitempty"`
	Words      int           `json:"words"`
	State      AnalysisState `json:"state"`
	AnalysedAt *time.Time    `json:"analysedAt,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// DocumentDetails adds fingerprint information to a summary.
type DocumentDetails struct {
	DocumentSummary
	ProjectID  string    `json:"projectId"`
	Hash       string    `json:"hash"`
	StoredHash string    `json:"storedHash,omitempty"`
	AnalysedBy string    `json:"analysedBy,omitempty"`
	Characters int       `json:"characters"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DocumentService browses the documents of a project.
type DocumentService interface {
	// List returns the project's documents in creation order.
	List(ctx context.Context, projectID string) ([]DocumentSummary, error)

	// Get returns a document with its full text.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Details returns a document's analysis information.
	Details(ctx context.Context, id string) (*DocumentDetails, error)

	// Delete removes a document. Knowledge extracted from it is kept.
	Delete(ctx context.Context, id string) error

	// Open opens the imported file in the system's default application.
	Open(ctx context.Context, id string) error
}
