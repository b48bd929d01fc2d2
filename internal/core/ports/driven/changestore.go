package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// EnhancementStore persists enhancement snapshots.
type EnhancementStore interface {
	// SaveEnhancement stores or updates an enhancement.
	SaveEnhancement(ctx context.Context, e *domain.Enhancement) error

	// GetEnhancement retrieves an enhancement by ID.
	GetEnhancement(ctx context.Context, id string) (*domain.Enhancement, error)

	// UpdateEnhancement replaces the stored enhancement if its status still
	// equals expected. Fails with domain.ErrStateConflict otherwise.
	UpdateEnhancement(ctx context.Context, e *domain.Enhancement, expected domain.EnhancementStatus) error

	// CompleteEnhancement stores the change records and replaces the
	// enhancement as one unit while it is still processing. Fails with
	// domain.ErrStateConflict otherwise, and nothing is stored.
	CompleteEnhancement(ctx context.Context, e *domain.Enhancement, changes []domain.ChangeRecord) error

	// TransitionEnhancement changes only the status if it still equals expected.
	// Fails with domain.ErrStateConflict otherwise.
	TransitionEnhancement(ctx context.Context, id string, expected, to domain.EnhancementStatus) error

	// ListActiveEnhancements returns enhancements still processing.
	ListActiveEnhancements(ctx context.Context) ([]domain.Enhancement, error)

	// ListEnhancements returns a document's enhancements, newest first.
	ListEnhancements(ctx context.Context, documentID string) ([]domain.Enhancement, error)
}

// ChangeStore persists change records.
type ChangeStore interface {
	// SaveChanges stores the records of one enhancement.
	SaveChanges(ctx context.Context, changes []domain.ChangeRecord) error

	// GetChange retrieves a record by ID.
	GetChange(ctx context.Context, id string) (*domain.ChangeRecord, error)

	// ListChanges returns an enhancement's records ordered by enhanced start.
	ListChanges(ctx context.Context, enhancementID string) ([]domain.ChangeRecord, error)

	// SetDecision records the reviewer's decision on a change.
	SetDecision(ctx context.Context, id string, decision domain.UserDecision) error
}
