package tui

import (
	"context"
	"errors"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

type stubJobs struct {
	report *domain.StatusReport
	err    error
	calls  int
}

func (s *stubJobs) Start(context.Context, string, domain.JobType, map[string]string) (*domain.ProcessingJob, error) {
	return nil, errors.ErrUnsupported
}

func (s *stubJobs) Advance(context.Context, string) (*domain.ProcessingJob, error) {
	return nil, errors.ErrUnsupported
}

func (s *stubJobs) Run(context.Context, string) (*domain.ProcessingJob, error) {
	return nil, errors.ErrUnsupported
}

func (s *stubJobs) Get(context.Context, string) (*domain.ProcessingJob, error) {
	return nil, domain.ErrNotFound
}

func (s *stubJobs) Status(_ context.Context, projectID string) (*domain.StatusReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &domain.StatusReport{ProjectID: projectID}, nil
}

func (s *stubJobs) History(context.Context, string, int) ([]domain.ProcessingJob, error) {
	return nil, nil
}

type stubStatus struct {
	events   chan domain.JobEvent
	err      error
	project  string
	canceled bool
}

func (s *stubStatus) Subscribe(_ context.Context, projectID string) (<-chan domain.JobEvent, func(), error) {
	s.project = projectID
	if s.err != nil {
		return nil, nil, s.err
	}
	if s.events == nil {
		s.events = make(chan domain.JobEvent, 8)
	}
	return s.events, func() { s.canceled = true }, nil
}

type stubKnowledge struct {
	items    []domain.KnowledgeItem
	verified []string
}

func (s *stubKnowledge) List(context.Context, string, driven.KnowledgeFilter) ([]domain.KnowledgeItem, error) {
	return s.items, nil
}

func (s *stubKnowledge) Get(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			item := s.items[i]
			return &item, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubKnowledge) Create(context.Context, string, domain.Category, string, string) (*domain.KnowledgeItem, error) {
	return nil, errors.ErrUnsupported
}

func (s *stubKnowledge) Edit(context.Context, string, domain.KnowledgeEdit) (*domain.KnowledgeItem, error) {
	return nil, errors.ErrUnsupported
}

func (s *stubKnowledge) Verify(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	s.verified = append(s.verified, id)
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item.IsVerified = true
	return item, nil
}

func (s *stubKnowledge) Flag(ctx context.Context, id string, flagged bool) (*domain.KnowledgeItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item.IsFlagged = flagged
	return item, nil
}

func (s *stubKnowledge) Delete(context.Context, string) error {
	return nil
}

func (s *stubKnowledge) Decisions(context.Context, string, int) ([]domain.MergeAuditEntry, error) {
	return nil, nil
}
