package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func TestMatchURI(t *testing.T) {
	tests := []struct {
		template, uri string
		want          map[string]string
	}{
		{"projects/{projectId}/status", "lorekeeper://projects/novel/status", map[string]string{"projectId": "novel"}},
		{"knowledge/{itemId}", "lorekeeper://knowledge/k-1", map[string]string{"itemId": "k-1"}},
		{"projects/{projectId}/status", "lorekeeper://projects/novel/knowledge", nil},
		{"projects/{projectId}/status", "file://projects/novel/status", nil},
		{"projects/{projectId}/status", "lorekeeper://projects/a/b/status", nil},
		{"projects/{projectId}/status", "lorekeeper://projects//status", nil},
		{"knowledge/{itemId}", "", nil},
	}
	for _, tt := range tests {
		got, ok := matchURI(tt.template, tt.uri)
		assert.Equal(t, tt.want != nil, ok, tt.uri)
		if tt.want != nil {
			assert.Equal(t, tt.want, got, tt.uri)
		}
	}
}

func TestReadResource_Status(t *testing.T) {
	jobs := &mockJobService{report: &domain.StatusReport{ProjectID: "novel", LowConfidenceFactsCount: 4}}
	s := newTestServer(t, &Ports{Jobs: jobs})

	res, err := s.readResource(context.Background(), "lorekeeper://projects/novel/status")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, `"lowConfidenceFactsCount": 4`)
	assert.Equal(t, "novel", jobs.lastProject)
}

func TestReadResource_Staleness(t *testing.T) {
	s := newTestServer(t, &Ports{Staleness: &mockStaleness{report: &domain.StalenessReport{
		ProjectID:   "novel",
		DocumentIDs: []string{"ch3"},
		Count:       1,
	}}})

	res, err := s.readResource(context.Background(), "lorekeeper://projects/novel/stale")
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "ch3")
}

func TestReadResource_Item(t *testing.T) {
	ctx := context.Background()

	kb := &mockKnowledgeService{item: &domain.KnowledgeItem{
		ID:               "k1",
		Name:             "Mara",
		Category:         domain.CategoryCharacter,
		Evidence:         "Mara drew her blade.",
		ExtractionMethod: domain.ExtractionLLMDirect,
	}}
	res, err := newTestServer(t, &Ports{Knowledge: kb}).readResource(ctx, "lorekeeper://knowledge/k1")
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "Mara drew her blade.")
	assert.Contains(t, res.Contents[0].Text, "llm_direct")

	missing := newTestServer(t, &Ports{Knowledge: &mockKnowledgeService{err: domain.ErrNotFound}})
	_, err = missing.readResource(ctx, "lorekeeper://knowledge/nope")
	require.Error(t, err)
}

func TestReadResource_Knowledge(t *testing.T) {
	kb := &mockKnowledgeService{items: []domain.KnowledgeItem{
		{ID: "k1", Name: "Mara", Category: domain.CategoryCharacter},
		{ID: "k2", Name: "The Siege", Category: domain.CategoryPlotThread},
	}}
	s := newTestServer(t, &Ports{Knowledge: kb})

	res, err := s.readResource(context.Background(), "lorekeeper://projects/novel/knowledge")
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "The Siege")

	_, err = s.readResource(context.Background(), "lorekeeper://projects//knowledge")
	require.Error(t, err)
}

func TestReadResource_OptionalPortsNotRegistered(t *testing.T) {
	s := newTestServer(t, &Ports{})

	_, err := s.readResource(context.Background(), "lorekeeper://knowledge/k1")
	require.Error(t, err)
	_, err = s.readResource(context.Background(), "lorekeeper://projects/novel/stale")
	require.Error(t, err)

	require.Len(t, s.resources(), 1)
	assert.Equal(t, "project-status", s.resources()[0].name)
}
