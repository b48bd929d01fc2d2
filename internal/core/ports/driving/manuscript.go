package driving

import "context"

// ImportResult summarises one import pass.
type ImportResult struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
}

// ManuscriptService imports manuscript files as project documents.
type ManuscriptService interface {
	// Import reads every supported file once.
	Import(ctx context.Context, projectID string) (*ImportResult, error)

	// Watch re-imports changed files until ctx is done.
	Watch(ctx context.Context, projectID string) error
}
