package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// HashInput is the input schema for the content_hash tool.
type HashInput struct {
	Content  *string  `json:"content,omitempty" jsonschema:"a single text to fingerprint"`
	Contents []string `json:"contents,omitempty" jsonschema:"several texts to fingerprint in order"`
}

// ProjectInput names the project a tool acts on.
type ProjectInput struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"project identifier (defaults to the server's project)"`
}

// StatusOutput is the output schema for the job_status tool.
type StatusOutput struct {
	ProjectID               string     `json:"project_id"`
	IsProcessing            bool       `json:"is_processing"`
	State                   string     `json:"state,omitempty"`
	JobID                   string     `json:"job_id,omitempty"`
	LastProcessedAt         *time.Time `json:"last_processed_at,omitempty"`
	LowConfidenceFactsCount int        `json:"low_confidence_facts_count"`
	ErrorCount              int        `json:"error_count"`
	HasUnanalyzedContent    bool       `json:"has_unanalyzed_content"`
	UnanalyzedChapterCount  int        `json:"unanalyzed_chapter_count"`
	StalenessUnknown        bool       `json:"staleness_unknown"`
}

// StaleOutput is the output schema for the detect_stale tool.
type StaleOutput struct {
	ProjectID   string   `json:"project_id"`
	Status      string   `json:"status"`
	DocumentIDs []string `json:"document_ids"`
	Count       int      `json:"count"`
	Reason      string   `json:"reason,omitempty"`
}

// KnowledgeInput is the input schema for the list_knowledge tool.
type KnowledgeInput struct {
	ProjectID   string `json:"project_id,omitempty" jsonschema:"project identifier (defaults to the server's project)"`
	Category    string `json:"category,omitempty" jsonschema:"character, relationship, plot_thread, timeline_event, world_building or theme"`
	FlaggedOnly bool   `json:"flagged_only,omitempty" jsonschema:"only items flagged for review"`
}

// KnowledgeOutput is the output schema for the list_knowledge tool.
type KnowledgeOutput struct {
	Items []KnowledgeItemOutput `json:"items"`
	Count int                   `json:"count"`
}

// KnowledgeItemOutput is one item of story knowledge.
type KnowledgeItemOutput struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
	Verified    bool    `json:"verified"`
	Flagged     bool    `json:"flagged"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "content_hash",
		Description: "Compute the fingerprint used to detect changed documents",
	}, s.handleContentHash)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "job_status",
		Description: "Report whether a project is being analysed and what needs attention",
	}, s.handleJobStatus)

	if s.ports.Staleness != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "detect_stale",
			Description: "List documents whose content changed since the last analysis",
		}, s.handleDetectStale)
	}

	if s.ports.Knowledge != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_knowledge",
			Description: "List extracted story knowledge of a project",
		}, s.handleListKnowledge)
	}
}

// handleContentHash fingerprints one or several texts. Missing input is
// reported in the output's error field rather than as a protocol error.
func (s *Server) handleContentHash(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input HashInput,
) (*mcp.CallToolResult, driving.HashResponse, error) {
	return nil, s.ports.Hash.Hash(driving.HashRequest{
		Content:  input.Content,
		Contents: input.Contents,
	}), nil
}

func (s *Server) handleJobStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	project := s.ports.project(input.ProjectID)
	if project == "" {
		return nil, StatusOutput{}, errors.New("project_id is required")
	}

	report, err := s.ports.Jobs.Status(ctx, project)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("getting status: %w", err)
	}

	out := StatusOutput{
		ProjectID:               report.ProjectID,
		IsProcessing:            report.IsProcessing,
		LastProcessedAt:         report.LastProcessedAt,
		LowConfidenceFactsCount: report.LowConfidenceFactsCount,
		ErrorCount:              report.ErrorCount,
		HasUnanalyzedContent:    report.HasUnanalyzedContent,
		UnanalyzedChapterCount:  report.UnanalyzedChapterCount,
		StalenessUnknown:        report.StalenessUnknown,
	}
	if report.CurrentJob != nil {
		out.State = string(report.CurrentJob.State)
		out.JobID = report.CurrentJob.ID
	}
	return nil, out, nil
}

func (s *Server) handleDetectStale(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, StaleOutput, error) {
	project := s.ports.project(input.ProjectID)
	if project == "" {
		return nil, StaleOutput{}, errors.New("project_id is required")
	}

	report, err := s.ports.Staleness.Detect(ctx, project)
	if err != nil {
		return nil, StaleOutput{}, fmt.Errorf("detecting stale documents: %w", err)
	}

	ids := report.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	return nil, StaleOutput{
		ProjectID:   report.ProjectID,
		Status:      string(report.Status),
		DocumentIDs: ids,
		Count:       report.Count,
		Reason:      report.Reason,
	}, nil
}

func (s *Server) handleListKnowledge(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input KnowledgeInput,
) (*mcp.CallToolResult, KnowledgeOutput, error) {
	project := s.ports.project(input.ProjectID)
	if project == "" {
		return nil, KnowledgeOutput{}, errors.New("project_id is required")
	}

	filter := driven.KnowledgeFilter{FlaggedOnly: input.FlaggedOnly}
	if input.Category != "" {
		cat := domain.Category(input.Category)
		if !cat.IsValid() {
			return nil, KnowledgeOutput{}, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, input.Category)
		}
		filter.Category = cat
	}

	items, err := s.ports.Knowledge.List(ctx, project, filter)
	if err != nil {
		return nil, KnowledgeOutput{}, fmt.Errorf("listing knowledge: %w", err)
	}

	out := KnowledgeOutput{
		Items: make([]KnowledgeItemOutput, len(items)),
		Count: len(items),
	}
	for i := range items {
		out.Items[i] = toItemOutput(&items[i])
	}
	return nil, out, nil
}

func toItemOutput(item *domain.KnowledgeItem) KnowledgeItemOutput {
	return KnowledgeItemOutput{
		ID:          item.ID,
		Category:    string(item.Category),
		Name:        item.Name,
		Description: item.Description,
		Confidence:  item.Confidence,
		Verified:    item.IsVerified,
		Flagged:     item.IsFlagged,
	}
}
