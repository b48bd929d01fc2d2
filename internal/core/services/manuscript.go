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

// Ensure ManuscriptService implements the interface.
var _ driving.ManuscriptService = (*ManuscriptService)(nil)

// ManuscriptService imports manuscript files as project documents.
// Documents are matched to files by URI, so a re-import updates text in
// place and the staleness detector sees the change.
type ManuscriptService struct {
	source     driven.ManuscriptSource
	normaliser driven.NormaliserRegistry
	docStore   driven.DocumentStore
	now        func() time.Time
}

// NewManuscriptService creates a new manuscript import service.
func NewManuscriptService(
	source driven.ManuscriptSource,
	normaliser driven.NormaliserRegistry,
	docStore driven.DocumentStore,
) *ManuscriptService {
	return &ManuscriptService{
		source:     source,
		normaliser: normaliser,
		docStore:   docStore,
		now:        time.Now,
	}
}

// Import reads every supported file once.
func (s *ManuscriptService) Import(ctx context.Context, projectID string) (*driving.ImportResult, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}

	raws, err := s.source.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan manuscript: %w", err)
	}

	result := &driving.ImportResult{}
	for i := range raws {
		raw := raws[i]
		raw.ProjectID = projectID
		outcome, err := s.upsert(ctx, &raw)
		if err != nil {
			return result, err
		}
		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		case outcomeUnchanged:
			result.Unchanged++
		default:
			result.Skipped++
		}
	}

	logger.Info("imported %s: %d created, %d updated, %d unchanged, %d skipped",
		projectID, result.Created, result.Updated, result.Unchanged, result.Skipped)
	return result, nil
}

// Watch applies file changes until ctx is done.
func (s *ManuscriptService) Watch(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}

	changes, err := s.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch manuscript: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			change.Document.ProjectID = projectID
			if err := s.apply(ctx, change); err != nil {
				logger.Warn("applying %s of %s: %v", change.Kind, change.Document.URI, err)
			}
		}
	}
}

func (s *ManuscriptService) apply(ctx context.Context, change domain.RawDocumentChange) error {
	if change.Kind == domain.FileDeleted {
		doc, err := s.docStore.GetDocumentByURI(ctx, change.Document.ProjectID, change.Document.URI)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("removed %s", doc.Title)
		return s.docStore.DeleteDocument(ctx, doc.ID)
	}

	outcome, err := s.upsert(ctx, &change.Document)
	if err != nil {
		return err
	}
	if outcome == outcomeCreated || outcome == outcomeUpdated {
		logger.Info("re-imported %s (%s)", change.Document.URI, outcome)
	}
	return nil
}

type importOutcome string

const (
	outcomeCreated   importOutcome = "created"
	outcomeUpdated   importOutcome = "updated"
	outcomeUnchanged importOutcome = "unchanged"
	outcomeSkipped   importOutcome = "skipped"
)

func (s *ManuscriptService) upsert(ctx context.Context, raw *domain.RawDocument) (importOutcome, error) {
	res, err := s.normaliser.Normalise(ctx, raw)
	if err != nil {
		logger.Debug("skipping %s: %v", raw.URI, err)
		return outcomeSkipped, nil
	}
	fresh := res.Document

	existing, err := s.docStore.GetDocumentByURI(ctx, raw.ProjectID, raw.URI)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		now := s.now()
		doc := &domain.Document{
			ID:        uuid.New().String(),
			ProjectID: raw.ProjectID,
			Title:     fresh.Title,
			URI:       raw.URI,
			Content:   fresh.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.docStore.SaveDocument(ctx, doc); err != nil {
			return "", fmt.Errorf("save %s: %w", raw.URI, err)
		}
		return outcomeCreated, nil
	case err != nil:
		return "", fmt.Errorf("look up %s: %w", raw.URI, err)
	}

	if existing.Content == fresh.Content && existing.Title == fresh.Title {
		return outcomeUnchanged, nil
	}
	existing.Title = fresh.Title
	existing.Content = fresh.Content
	existing.UpdatedAt = s.now()
	if err := s.docStore.SaveDocument(ctx, existing); err != nil {
		return "", fmt.Errorf("save %s: %w", raw.URI, err)
	}
	return outcomeUpdated, nil
}
