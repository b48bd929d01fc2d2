package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// DocumentStore persists project documents.
// The pipeline only reads documents; writes come from import.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByURI retrieves a document by its import location.
	GetDocumentByURI(ctx context.Context, projectID, uri string) (*domain.Document, error)

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns a project's documents in a stable order
	// (creation time, then ID).
	ListDocuments(ctx context.Context, projectID string) ([]domain.Document, error)

	// ListProjects returns the IDs of projects that have documents, sorted.
	ListProjects(ctx context.Context) ([]string, error)
}

// FingerprintStore persists the content hash of each successfully analysed document.
type FingerprintStore interface {
	// GetFingerprint returns the fingerprint for a document, or nil if it
	// has never been processed.
	GetFingerprint(ctx context.Context, documentID string) (*domain.Fingerprint, error)

	// ListFingerprints returns every fingerprint of a project keyed by document ID.
	ListFingerprints(ctx context.Context, projectID string) (map[string]domain.Fingerprint, error)

	// SaveFingerprints upserts fingerprints.
	SaveFingerprints(ctx context.Context, fps []domain.Fingerprint) error
}
