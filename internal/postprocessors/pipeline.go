// Package postprocessors turns documents into the chunks sent for extraction.
package postprocessors

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs stages in order. The first stage receives nil chunks and
// produces them; later stages rewrite what they are given.
type Pipeline struct {
	stages []driven.PostProcessor
}

// NewPipeline chains stages in the order given.
func NewPipeline(stages ...driven.PostProcessor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Process chunks doc. Every returned chunk belongs to doc, whatever the
// stages set.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := stage.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("%s stage on %s: %w", stage.Name(), doc.ID, err)
		}
		chunks = out
	}

	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}
	logger.Debug("pipeline %s: %s -> %d chunk(s)", p, doc.ID, len(chunks))
	return chunks, nil
}

// Stages returns the stage names in order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// String renders the pipeline as "chunker > tidy".
func (p *Pipeline) String() string {
	return strings.Join(p.Stages(), " > ")
}
