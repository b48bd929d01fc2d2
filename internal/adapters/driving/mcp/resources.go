package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

const uriScheme = "lorekeeper://"

// resource is a read-only JSON view addressed by a URI template whose
// {placeholders} each match one non-empty path segment.
type resource struct {
	template    string
	name        string
	description string
	read        func(ctx context.Context, vars map[string]string) (any, error)
}

func (s *Server) resources() []resource {
	out := []resource{{
		template:    "projects/{projectId}/status",
		name:        "project-status",
		description: "Processing status of a project",
		read: func(ctx context.Context, v map[string]string) (any, error) {
			return s.ports.Jobs.Status(ctx, v["projectId"])
		},
	}}

	if s.ports.Staleness != nil {
		out = append(out, resource{
			template:    "projects/{projectId}/stale",
			name:        "project-staleness",
			description: "Documents changed since their last successful analysis",
			read: func(ctx context.Context, v map[string]string) (any, error) {
				return s.ports.Staleness.Detect(ctx, v["projectId"])
			},
		})
	}

	if s.ports.Knowledge != nil {
		out = append(out, resource{
			template:    "projects/{projectId}/knowledge",
			name:        "project-knowledge",
			description: "Story knowledge extracted from a project",
			read: func(ctx context.Context, v map[string]string) (any, error) {
				items, err := s.ports.Knowledge.List(ctx, v["projectId"], driven.KnowledgeFilter{})
				if err != nil {
					return nil, err
				}
				views := make([]KnowledgeItemOutput, len(items))
				for i := range items {
					views[i] = toItemOutput(&items[i])
				}
				return views, nil
			},
		}, resource{
			template:    "knowledge/{itemId}",
			name:        "knowledge-item",
			description: "A single knowledge item with its evidence",
			read: func(ctx context.Context, v map[string]string) (any, error) {
				item, err := s.ports.Knowledge.Get(ctx, v["itemId"])
				if err != nil {
					return nil, err
				}
				return struct {
					KnowledgeItemOutput
					Evidence string `json:"evidence,omitempty"`
					Method   string `json:"extraction_method"`
				}{toItemOutput(item), item.Evidence, string(item.ExtractionMethod)}, nil
			},
		})
	}
	return out
}

func (s *Server) registerResources() {
	for _, r := range s.resources() {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + r.template,
			Name:        r.name,
			Description: r.description,
			MIMEType:    "application/json",
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.serveResource(ctx, r, req.Params.URI)
		})
	}
}

// readResource resolves uri against every registered template.
func (s *Server) readResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	for _, r := range s.resources() {
		if _, ok := matchURI(r.template, uri); ok {
			return s.serveResource(ctx, r, uri)
		}
	}
	return nil, mcp.ResourceNotFoundError(uri)
}

func (s *Server) serveResource(ctx context.Context, r resource, uri string) (*mcp.ReadResourceResult, error) {
	vars, ok := matchURI(r.template, uri)
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	v, err := r.read(ctx, vars)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, mcp.ResourceNotFoundError(uri)
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", r.name, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", r.name, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
	}, nil
}

// matchURI binds template placeholders to the segments of uri.
func matchURI(template, uri string) (map[string]string, bool) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return nil, false
	}
	want, got := strings.Split(template, "/"), strings.Split(rest, "/")
	if len(want) != len(got) {
		return nil, false
	}

	vars := make(map[string]string)
	for i, seg := range want {
		name, isVar := strings.CutPrefix(seg, "{")
		switch {
		case isVar && got[i] != "":
			vars[strings.TrimSuffix(name, "}")] = got[i]
		case isVar || seg != got[i]:
			return nil, false
		}
	}
	return vars, true
}
