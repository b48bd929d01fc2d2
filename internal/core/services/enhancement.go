package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure EnhancementService implements the interface.
var _ driving.EnhancementService = (*EnhancementService)(nil)

// EnhancementService rewrites documents and reconciles reviewer decisions.
type EnhancementService struct {
	docStore     driven.DocumentStore
	enhancements driven.EnhancementStore
	changes      driven.ChangeStore
	enhancer     driven.Enhancer
	tracker      driving.ChangeTracker
	applicator   driving.ChangeApplicator
	supervisor   driving.TimeoutSupervisor
	now          func() time.Time
}

// NewEnhancementService creates a new enhancement service.
func NewEnhancementService(
	docStore driven.DocumentStore,
	enhancements driven.EnhancementStore,
	changes driven.ChangeStore,
	enhancer driven.Enhancer,
	tracker driving.ChangeTracker,
	applicator driving.ChangeApplicator,
) *EnhancementService {
	return &EnhancementService{
		docStore:     docStore,
		enhancements: enhancements,
		changes:      changes,
		enhancer:     enhancer,
		tracker:      tracker,
		applicator:   applicator,
		now:          time.Now,
	}
}

// SetSupervisor arms a live timeout for every enhancement.
func (s *EnhancementService) SetSupervisor(supervisor driving.TimeoutSupervisor) {
	s.supervisor = supervisor
}

// Enhance snapshots the document, asks the enhancer for a rewrite and
// records the changes between the two versions. The records become visible
// only together with the completed enhancement.
func (s *EnhancementService) Enhance(ctx context.Context, documentID string) (*domain.Enhancement, []domain.ChangeRecord, error) {
	if s.enhancer == nil {
		return nil, nil, domain.ErrLLMUnavailable
	}
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get document: %w", err)
	}
	if !doc.IsEligible() {
		return nil, nil, fmt.Errorf("%w: document %s is empty", domain.ErrInvalidInput, documentID)
	}

	now := s.now()
	e := &domain.Enhancement{
		ID:           uuid.New().String(),
		DocumentID:   doc.ID,
		ProjectID:    doc.ProjectID,
		Status:       domain.EnhancementProcessing,
		OriginalText: doc.Content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.enhancements.SaveEnhancement(ctx, e); err != nil {
		return nil, nil, fmt.Errorf("save enhancement: %w", err)
	}
	if s.supervisor != nil {
		s.supervisor.WatchEnhancement(*e)
	}

	enhanced, err := s.enhancer.Enhance(ctx, e.OriginalText)
	if err != nil {
		return s.failEnhancement(ctx, e, fmt.Errorf("enhance: %w", err))
	}

	records, err := s.tracker.Track(e.ID, e.OriginalText, enhanced)
	if err != nil {
		return s.failEnhancement(ctx, e, fmt.Errorf("track changes: %w", err))
	}

	done := *e
	done.Status = domain.EnhancementCompleted
	done.EnhancedText = enhanced
	done.UpdatedAt = s.now()
	if err := s.enhancements.CompleteEnhancement(ctx, &done, records); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return nil, nil, fmt.Errorf("complete enhancement %s: %w", e.ID, err)
		}
		return s.failEnhancement(ctx, e, fmt.Errorf("complete enhancement: %w", err))
	}

	logger.Info("enhancement %s: %d changes for document %s", e.ID, len(records), doc.ID)
	return &done, records, nil
}

// failEnhancement records the cause unless another writer got there first.
func (s *EnhancementService) failEnhancement(
	ctx context.Context,
	e *domain.Enhancement,
	cause error,
) (*domain.Enhancement, []domain.ChangeRecord, error) {
	failed := *e
	failed.Status = domain.EnhancementFailed
	failed.ErrorDetails = cause.Error()
	failed.UpdatedAt = s.now()
	if err := s.enhancements.UpdateEnhancement(ctx, &failed, domain.EnhancementProcessing); err != nil &&
		!errors.Is(err, domain.ErrStateConflict) {
		logger.Warn("enhancement %s: record failure: %v", e.ID, err)
	}
	logger.Warn("enhancement %s: failed: %v", e.ID, cause)
	return &failed, nil, cause
}

// Get returns an enhancement.
func (s *EnhancementService) Get(ctx context.Context, id string) (*domain.Enhancement, error) {
	return s.enhancements.GetEnhancement(ctx, id)
}

// Changes lists the records of an enhancement ordered by position.
func (s *EnhancementService) Changes(ctx context.Context, enhancementID string) ([]domain.ChangeRecord, error) {
	if _, err := s.enhancements.GetEnhancement(ctx, enhancementID); err != nil {
		return nil, fmt.Errorf("get enhancement: %w", err)
	}
	return s.changes.ListChanges(ctx, enhancementID)
}

// Decide records a reviewer decision on one change.
func (s *EnhancementService) Decide(ctx context.Context, changeID string, decision domain.UserDecision) error {
	if !decision.IsValid() {
		return fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidInput, decision)
	}
	change, err := s.changes.GetChange(ctx, changeID)
	if err != nil {
		return fmt.Errorf("get change: %w", err)
	}
	e, err := s.enhancements.GetEnhancement(ctx, change.EnhancementID)
	if err != nil {
		return fmt.Errorf("get enhancement: %w", err)
	}
	if e.Status != domain.EnhancementCompleted {
		return fmt.Errorf("%w: enhancement %s is %s", domain.ErrInvalidInput, e.ID, e.Status)
	}
	return s.changes.SetDecision(ctx, changeID, decision)
}

// Finalize returns the enhanced snapshot with every rejected change reverted.
func (s *EnhancementService) Finalize(ctx context.Context, enhancementID string) (string, error) {
	e, err := s.enhancements.GetEnhancement(ctx, enhancementID)
	if err != nil {
		return "", fmt.Errorf("get enhancement: %w", err)
	}
	if e.Status != domain.EnhancementCompleted {
		return "", fmt.Errorf("%w: enhancement %s is %s", domain.ErrInvalidInput, e.ID, e.Status)
	}
	changes, err := s.changes.ListChanges(ctx, enhancementID)
	if err != nil {
		return "", fmt.Errorf("list changes: %w", err)
	}
	return s.applicator.Apply(e.EnhancedText, changes)
}
