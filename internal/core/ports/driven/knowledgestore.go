package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// KnowledgeFilter narrows knowledge listings. Zero values match everything.
type KnowledgeFilter struct {
	Category      domain.Category
	FlaggedOnly   bool
	MaxConfidence float64
}

// KnowledgeStore persists story knowledge.
type KnowledgeStore interface {
	// SaveItem stores or updates an item.
	SaveItem(ctx context.Context, item *domain.KnowledgeItem) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error)

	// DeleteItem removes an item.
	DeleteItem(ctx context.Context, id string) error

	// ListItems returns a project's items ordered by category then name.
	ListItems(ctx context.Context, projectID string, filter KnowledgeFilter) ([]domain.KnowledgeItem, error)

	// FindNearby returns existing items of the same category whose name
	// resembles name, closest first.
	FindNearby(ctx context.Context, projectID string, category domain.Category, name string) ([]domain.KnowledgeItem, error)

	// CountLowConfidence counts unverified automatic items below threshold.
	CountLowConfidence(ctx context.Context, projectID string, threshold float64) (int, error)
}

// RunCommitter writes the outcome of a successful run as one atomic unit:
// knowledge inserts and updates plus document fingerprints.
type RunCommitter interface {
	CommitRun(ctx context.Context, commit domain.RunCommit) error
}

// MergeAuditLog records every arbitration decision.
type MergeAuditLog interface {
	// AppendDecision stores one decision.
	AppendDecision(ctx context.Context, entry domain.MergeAuditEntry) error

	// ListDecisions returns a project's decisions, newest first.
	ListDecisions(ctx context.Context, projectID string, limit int) ([]domain.MergeAuditEntry, error)
}
