package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// ExtractionGateway turns document chunks into structured story facts.
// Failures wrap domain.ErrGatewayUnavailable or
// domain.ErrGatewayMalformedResponse.
type ExtractionGateway interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error)
}

// MergeEvaluationOptions tunes the evaluator call.
type MergeEvaluationOptions struct {
	Temperature float64
	MaxTokens   int
}

// MergeEvaluationRequest asks whether a candidate duplicates nearby items.
type MergeEvaluationRequest struct {
	Prompt   string
	ItemType domain.Category
	Options  MergeEvaluationOptions
}

// MergeEvaluator is the reasoning service behind merge arbitration.
// It returns the raw response body; validation is the caller's job.
type MergeEvaluator interface {
	Evaluate(ctx context.Context, req MergeEvaluationRequest) (string, error)
}

// Enhancer produces an AI rewrite of a passage.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

// RateLimiter throttles calls per key (typically project ID).
type RateLimiter interface {
	// Wait blocks until a request for key may proceed or ctx is done.
	Wait(ctx context.Context, key string) error

	// Allow reports whether a request for key may proceed now.
	Allow(key string) bool

	// Reset forgets all state for key.
	Reset(key string)
}
