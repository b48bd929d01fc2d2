package mcp

import (
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server exposes.
type Ports struct {
	// Hash computes content fingerprints.
	Hash driving.HashService

	// Jobs reports processing status.
	Jobs driving.JobService

	// Staleness lists documents needing analysis.
	Staleness driving.StalenessDetector

	// Knowledge lists story knowledge. Optional.
	Knowledge driving.KnowledgeService

	// DefaultProject is used when a call names no project.
	DefaultProject string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Hash == nil {
		return ErrMissingHashService
	}
	if p.Jobs == nil {
		return ErrMissingJobService
	}
	return nil
}

func (p *Ports) project(id string) string {
	if id != "" {
		return id
	}
	return p.DefaultProject
}
