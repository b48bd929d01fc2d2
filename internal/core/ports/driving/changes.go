package driving

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// ChangeTracker computes change records between two versions of a text.
type ChangeTracker interface {
	// Track diffs original against enhanced. Every record is pending.
	Track(enhancementID, original, enhanced string) ([]domain.ChangeRecord, error)
}

// ChangeApplicator reverts rejected changes in an enhanced text.
type ChangeApplicator interface {
	// Apply returns enhanced with every rejected record reverted.
	// It must be called with the exact enhanced text the records were
	// computed from; a mismatch fails with domain.ErrInvalidPositionRange.
	Apply(enhanced string, changes []domain.ChangeRecord) (string, error)
}

// EnhancementService produces and reviews AI rewrites.
type EnhancementService interface {
	// Enhance rewrites a document and records the changes.
	Enhance(ctx context.Context, documentID string) (*domain.Enhancement, []domain.ChangeRecord, error)

	// Get returns an enhancement.
	Get(ctx context.Context, id string) (*domain.Enhancement, error)

	// Changes lists the records of an enhancement.
	Changes(ctx context.Context, enhancementID string) ([]domain.ChangeRecord, error)

	// Decide records a reviewer decision.
	Decide(ctx context.Context, changeID string, decision domain.UserDecision) error

	// Finalize returns the text with rejected changes reverted.
	Finalize(ctx context.Context, enhancementID string) (string, error)
}
