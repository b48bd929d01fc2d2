package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

func newTestServer(t *testing.T, p *Ports) *Server {
	t.Helper()
	if p.Hash == nil {
		p.Hash = &mockHashService{}
	}
	if p.Jobs == nil {
		p.Jobs = &mockJobService{}
	}
	s, err := NewServer(p)
	require.NoError(t, err)
	return s
}

func TestServer_handleContentHash(t *testing.T) {
	ctx := context.Background()

	t.Run("passes single content through", func(t *testing.T) {
		hash := &mockHashService{resp: driving.HashResponse{Hash: "abc"}}
		s := newTestServer(t, &Ports{Hash: hash})

		text := "Chapter one"
		_, out, err := s.handleContentHash(ctx, nil, HashInput{Content: &text})

		require.NoError(t, err)
		assert.Equal(t, "abc", out.Hash)
		require.NotNil(t, hash.lastReq.Content)
		assert.Equal(t, "Chapter one", *hash.lastReq.Content)
	})

	t.Run("passes batch through", func(t *testing.T) {
		hash := &mockHashService{resp: driving.HashResponse{Hashes: []string{"a", "b"}}}
		s := newTestServer(t, &Ports{Hash: hash})

		_, out, err := s.handleContentHash(ctx, nil, HashInput{Contents: []string{"x", "y"}})

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out.Hashes)
		assert.Equal(t, []string{"x", "y"}, hash.lastReq.Contents)
	})

	t.Run("missing input is reported in output", func(t *testing.T) {
		hash := &mockHashService{resp: driving.HashResponse{Error: "content or contents is required"}}
		s := newTestServer(t, &Ports{Hash: hash})

		_, out, err := s.handleContentHash(ctx, nil, HashInput{})

		require.NoError(t, err)
		assert.NotEmpty(t, out.Error)
	})
}

func TestServer_handleJobStatus(t *testing.T) {
	ctx := context.Background()
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("maps report and current job", func(t *testing.T) {
		jobs := &mockJobService{report: &domain.StatusReport{
			ProjectID:               "novel",
			IsProcessing:            true,
			LastProcessedAt:         &last,
			LowConfidenceFactsCount: 3,
			HasUnanalyzedContent:    true,
			UnanalyzedChapterCount:  2,
			CurrentJob:              &domain.ProcessingJob{ID: "job-1", State: domain.JobStateAnalyzing},
		}}
		s := newTestServer(t, &Ports{Jobs: jobs, DefaultProject: "novel"})

		_, out, err := s.handleJobStatus(ctx, nil, ProjectInput{})

		require.NoError(t, err)
		assert.Equal(t, "novel", jobs.lastProject)
		assert.True(t, out.IsProcessing)
		assert.Equal(t, "analyzing", out.State)
		assert.Equal(t, "job-1", out.JobID)
		assert.Equal(t, 3, out.LowConfidenceFactsCount)
		assert.Equal(t, 2, out.UnanalyzedChapterCount)
		assert.Equal(t, &last, out.LastProcessedAt)
	})

	t.Run("requires a project", func(t *testing.T) {
		s := newTestServer(t, &Ports{})
		_, _, err := s.handleJobStatus(ctx, nil, ProjectInput{})
		require.Error(t, err)
	})

	t.Run("propagates service error", func(t *testing.T) {
		s := newTestServer(t, &Ports{Jobs: &mockJobService{err: errors.New("db down")}})
		_, _, err := s.handleJobStatus(ctx, nil, ProjectInput{ProjectID: "p"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestServer_handleDetectStale(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stale ids", func(t *testing.T) {
		s := newTestServer(t, &Ports{Staleness: &mockStaleness{report: &domain.StalenessReport{
			ProjectID:   "p",
			Status:      domain.StalenessKnown,
			DocumentIDs: []string{"d1", "d2"},
			Count:       2,
		}}})

		_, out, err := s.handleDetectStale(ctx, nil, ProjectInput{ProjectID: "p"})

		require.NoError(t, err)
		assert.Equal(t, "known", out.Status)
		assert.Equal(t, []string{"d1", "d2"}, out.DocumentIDs)
		assert.Equal(t, 2, out.Count)
	})

	t.Run("unknown staleness keeps empty list", func(t *testing.T) {
		s := newTestServer(t, &Ports{Staleness: &mockStaleness{report: &domain.StalenessReport{
			ProjectID: "p",
			Status:    domain.StalenessUnknown,
			Reason:    "fingerprint store unavailable",
		}}})

		_, out, err := s.handleDetectStale(ctx, nil, ProjectInput{ProjectID: "p"})

		require.NoError(t, err)
		assert.Equal(t, "unknown", out.Status)
		assert.NotNil(t, out.DocumentIDs)
		assert.Empty(t, out.DocumentIDs)
		assert.NotEmpty(t, out.Reason)
	})
}

func TestServer_handleListKnowledge(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by category", func(t *testing.T) {
		kb := &mockKnowledgeService{items: []domain.KnowledgeItem{
			{ID: "k1", Category: domain.CategoryCharacter, Name: "Mara", Confidence: 0.9, IsVerified: true},
		}}
		s := newTestServer(t, &Ports{Knowledge: kb})

		_, out, err := s.handleListKnowledge(ctx, nil, KnowledgeInput{ProjectID: "p", Category: "character", FlaggedOnly: true})

		require.NoError(t, err)
		assert.Equal(t, domain.CategoryCharacter, kb.lastFilter.Category)
		assert.True(t, kb.lastFilter.FlaggedOnly)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, "Mara", out.Items[0].Name)
		assert.True(t, out.Items[0].Verified)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		s := newTestServer(t, &Ports{Knowledge: &mockKnowledgeService{}})
		_, _, err := s.handleListKnowledge(ctx, nil, KnowledgeInput{ProjectID: "p", Category: "weather"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
