package driving

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// MergeArbiter decides how a candidate relates to nearby existing items.
// It never fails: any problem with the reasoning service yields keep_distinct.
type MergeArbiter interface {
	Decide(ctx context.Context, scope AuditScope, candidate domain.Candidate, nearby []domain.KnowledgeItem) domain.MergeDecision
}

// AuditScope identifies where a decision was made.
type AuditScope struct {
	ProjectID string
	JobID     string
}

// KnowledgeService manages story knowledge on behalf of humans.
type KnowledgeService interface {
	// List returns a project's items.
	List(ctx context.Context, projectID string, filter driven.KnowledgeFilter) ([]domain.KnowledgeItem, error)

	// Get returns one item.
	Get(ctx context.Context, id string) (*domain.KnowledgeItem, error)

	// Create stores a human-entered item (user_input, confidence 1.0).
	Create(ctx context.Context, projectID string, category domain.Category, name, description string) (*domain.KnowledgeItem, error)

	// Edit applies a human correction.
	Edit(ctx context.Context, id string, edit domain.KnowledgeEdit) (*domain.KnowledgeItem, error)

	// Verify marks an item as confirmed by a human.
	Verify(ctx context.Context, id string) (*domain.KnowledgeItem, error)

	// Flag toggles the review flag.
	Flag(ctx context.Context, id string, flagged bool) (*domain.KnowledgeItem, error)

	// Delete removes an item.
	Delete(ctx context.Context, id string) error

	// Decisions lists recent merge decisions for a project.
	Decisions(ctx context.Context, projectID string, limit int) ([]domain.MergeAuditEntry, error)
}
