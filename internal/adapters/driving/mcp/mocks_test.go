package mcp

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

var (
	_ driving.HashService       = (*mockHashService)(nil)
	_ driving.JobService        = (*mockJobService)(nil)
	_ driving.StalenessDetector = (*mockStaleness)(nil)
	_ driving.KnowledgeService  = (*mockKnowledgeService)(nil)
)

type mockHashService struct {
	lastReq driving.HashRequest
	resp    driving.HashResponse
}

func (m *mockHashService) Hash(req driving.HashRequest) driving.HashResponse {
	m.lastReq = req
	return m.resp
}

type mockJobService struct {
	report      *domain.StatusReport
	err         error
	lastProject string
}

func (m *mockJobService) Start(context.Context, string, domain.JobType, map[string]string) (*domain.ProcessingJob, error) {
	return nil, m.err
}

func (m *mockJobService) Advance(context.Context, string) (*domain.ProcessingJob, error) {
	return nil, m.err
}

func (m *mockJobService) Run(context.Context, string) (*domain.ProcessingJob, error) {
	return nil, m.err
}

func (m *mockJobService) Get(context.Context, string) (*domain.ProcessingJob, error) {
	return nil, m.err
}

func (m *mockJobService) Status(_ context.Context, projectID string) (*domain.StatusReport, error) {
	m.lastProject = projectID
	return m.report, m.err
}

func (m *mockJobService) History(context.Context, string, int) ([]domain.ProcessingJob, error) {
	return nil, m.err
}

type mockStaleness struct {
	report *domain.StalenessReport
	err    error
}

func (m *mockStaleness) Detect(context.Context, string) (*domain.StalenessReport, error) {
	return m.report, m.err
}

type mockKnowledgeService struct {
	items      []domain.KnowledgeItem
	item       *domain.KnowledgeItem
	err        error
	lastFilter driven.KnowledgeFilter
}

func (m *mockKnowledgeService) List(_ context.Context, _ string, filter driven.KnowledgeFilter) ([]domain.KnowledgeItem, error) {
	m.lastFilter = filter
	return m.items, m.err
}

func (m *mockKnowledgeService) Get(context.Context, string) (*domain.KnowledgeItem, error) {
	return m.item, m.err
}

func (m *mockKnowledgeService) Create(context.Context, string, domain.Category, string, string) (*domain.KnowledgeItem, error) {
	return m.item, m.err
}

func (m *mockKnowledgeService) Edit(context.Context, string, domain.KnowledgeEdit) (*domain.KnowledgeItem, error) {
	return m.item, m.err
}

func (m *mockKnowledgeService) Verify(context.Context, string) (*domain.KnowledgeItem, error) {
	return m.item, m.err
}

func (m *mockKnowledgeService) Flag(context.Context, string, bool) (*domain.KnowledgeItem, error) {
	return m.item, m.err
}

func (m *mockKnowledgeService) Delete(context.Context, string) error {
	return m.err
}

func (m *mockKnowledgeService) Decisions(context.Context, string, int) ([]domain.MergeAuditEntry, error) {
	return nil, m.err
}
