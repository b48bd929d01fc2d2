package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure KnowledgeService implements the interface.
var _ driving.KnowledgeService = (*KnowledgeService)(nil)

// KnowledgeService manages story knowledge on behalf of humans.
type KnowledgeService struct {
	store driven.KnowledgeStore
	audit driven.MergeAuditLog
	now   func() time.Time
}

// NewKnowledgeService creates a new knowledge service.
func NewKnowledgeService(store driven.KnowledgeStore, audit driven.MergeAuditLog) *KnowledgeService {
	return &KnowledgeService{store: store, audit: audit, now: time.Now}
}

// List returns a project's items.
func (s *KnowledgeService) List(ctx context.Context, projectID string, filter driven.KnowledgeFilter) ([]domain.KnowledgeItem, error) {
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, filter.Category)
	}
	return s.store.ListItems(ctx, projectID, filter)
}

// Get returns one item.
func (s *KnowledgeService) Get(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	return s.store.GetItem(ctx, id)
}

// Create stores a human-entered item.
func (s *KnowledgeService) Create(
	ctx context.Context,
	projectID string,
	category domain.Category,
	name, description string,
) (*domain.KnowledgeItem, error) {
	name = strings.TrimSpace(name)
	switch {
	case strings.TrimSpace(projectID) == "":
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	case !category.IsValid():
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, category)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	now := s.now()
	item := &domain.KnowledgeItem{
		ID:               uuid.New().String(),
		ProjectID:        projectID,
		Category:         category,
		Name:             name,
		Description:      strings.TrimSpace(description),
		Confidence:       1.0,
		ExtractionMethod: domain.ExtractionUserInput,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// Edit applies a human correction. Any change makes the item user-owned.
func (s *KnowledgeService) Edit(ctx context.Context, id string, edit domain.KnowledgeEdit) (*domain.KnowledgeItem, error) {
	if edit.Category != nil && !edit.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, *edit.Category)
	}
	if edit.Name != nil && strings.TrimSpace(*edit.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
	}

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if !item.ApplyUserEdit(edit, s.now()) {
		return item, nil
	}
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// Verify marks an item as confirmed and clears its review flag.
func (s *KnowledgeService) Verify(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	return s.update(ctx, id, func(item *domain.KnowledgeItem) {
		item.IsVerified = true
		item.IsFlagged = false
	})
}

// Flag sets or clears the review flag.
func (s *KnowledgeService) Flag(ctx context.Context, id string, flagged bool) (*domain.KnowledgeItem, error) {
	return s.update(ctx, id, func(item *domain.KnowledgeItem) {
		item.IsFlagged = flagged
	})
}

// Delete removes an item.
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteItem(ctx, id)
}

// Decisions lists recent merge decisions for a project.
func (s *KnowledgeService) Decisions(ctx context.Context, projectID string, limit int) ([]domain.MergeAuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ListDecisions(ctx, projectID, limit)
}

func (s *KnowledgeService) update(ctx context.Context, id string, fn func(*domain.KnowledgeItem)) (*domain.KnowledgeItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	fn(item)
	item.UpdatedAt = s.now()
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}
