// Package tui provides the interactive job watch for lorekeeper.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// StatusSource delivers job events for a project.
type StatusSource interface {
	Subscribe(ctx context.Context, projectID string) (<-chan domain.JobEvent, func(), error)
}

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Jobs reports processing status.
	Jobs driving.JobService

	// Knowledge backs the review view. Optional.
	Knowledge driving.KnowledgeService

	// Status streams job events.
	Status StatusSource

	// ReviewThreshold hides unflagged items at or above this confidence
	// from the review view. Zero means the default pipeline threshold.
	ReviewThreshold float64
}

func (p *Ports) reviewThreshold() float64 {
	if p.ReviewThreshold > 0 {
		return p.ReviewThreshold
	}
	return domain.DefaultAppSettings().Pipeline.LowConfidenceThreshold
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Jobs == nil {
		return ErrMissingJobService
	}
	if p.Status == nil {
		return ErrMissingStatusSource
	}
	return nil
}
