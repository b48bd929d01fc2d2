package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// Normaliser strips a manuscript format down to prose.
type Normaliser interface {
	SupportedMIMETypes() []string
	// Priority breaks ties between normalisers claiming the same type.
	// Format-specific normalisers use 50 to 89, catch-alls 1 to 9.
	Priority() int
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult carries the document with Title and Content filled in.
// Chunking happens afterwards in the PostProcessorPipeline.
type NormaliseResult struct {
	Document domain.Document
}
