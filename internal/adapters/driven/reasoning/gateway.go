package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/llmjson"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure Gateway implements the interface.
var _ driven.ExtractionGateway = (*Gateway)(nil)

// Default gateway settings.
const (
	DefaultBatchSize   = 8
	DefaultParallelism = 2
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4096
	DefaultCallTimeout = 2 * time.Minute
)

// GatewayConfig tunes batching and the per-call budget.
type GatewayConfig struct {
	// BatchSize is the number of chunks sent per call.
	BatchSize int
	// Parallelism bounds concurrent calls for one Extract.
	Parallelism int
	// CallTimeout bounds each call.
	CallTimeout time.Duration
	// MaxTokens caps the response length.
	MaxTokens int
}

// Gateway sends chunks to the LLM in batches and parses structured facts
// out of the answers.
type Gateway struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	limiter driven.RateLimiter
	cfg     GatewayConfig
}

// NewGateway creates an extraction gateway. Zero config fields take defaults.
func NewGateway(llm driven.LLMService, prompts driven.PromptStore, cfg GatewayConfig) *Gateway {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Gateway{llm: llm, prompts: prompts, cfg: cfg}
}

// SetRateLimiter throttles calls per project.
func (g *Gateway) SetRateLimiter(limiter driven.RateLimiter) {
	g.limiter = limiter
}

// Extract runs one extraction over every chunk in req. Batch results are
// merged in chunk order. Any failed batch fails the whole call.
func (g *Gateway) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	if !req.ExtractionType.IsValid() {
		return nil, fmt.Errorf("%w: extraction type %q", domain.ErrInvalidInput, req.ExtractionType)
	}
	if g.llm == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, domain.ErrLLMUnavailable)
	}
	if len(req.Chunks) == 0 {
		return &domain.ExtractionResult{}, nil
	}

	template, err := g.prompts.Load(driven.PromptExtraction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	existing, err := json.Marshal(req.ExistingKnowledge)
	if err != nil {
		return nil, fmt.Errorf("encoding existing knowledge: %w", err)
	}

	batches := batch(req.Chunks, g.cfg.BatchSize)
	results := make([]domain.ExtractionResult, len(batches))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Parallelism)
	for i, chunks := range batches {
		eg.Go(func() error {
			prompt := fmt.Sprintf(template, describe(req.ExtractionType), string(existing), render(chunks))
			res, err := g.call(egCtx, req.ProjectID, prompt, len(chunks))
			if err != nil {
				return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}
			results[i] = *res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged domain.ExtractionResult
	for _, r := range results {
		merged.Merge(r)
	}
	logger.Debug("extraction %s for project %s: %d batches, %d items",
		req.ExtractionType, req.ProjectID, len(batches), merged.Count())
	return &merged, nil
}

func (g *Gateway) call(ctx context.Context, projectID, prompt string, chunks int) (*domain.ExtractionResult, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, projectID); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", domain.ErrGatewayUnavailable, domain.ErrRateLimited, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	raw, err := g.llm.Generate(callCtx, prompt, driven.GenerateOptions{
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: DefaultTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}

	res, err := ParseExtraction(raw)
	if err != nil {
		return nil, err
	}
	fillStats(res, chunks, time.Since(start))
	return res, nil
}

// ParseExtraction reads an extraction result from a raw response body,
// recovering an object embedded in prose when the body is not pure JSON.
func ParseExtraction(raw string) (*domain.ExtractionResult, error) {
	var res domain.ExtractionResult
	stage, err := llmjson.Decode(raw, &res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayMalformedResponse, err)
	}
	if stage == llmjson.StageRecovered {
		logger.Debug("extraction response recovered from surrounding text")
	}
	for _, group := range [][]domain.ExtractedFact{
		res.Characters, res.Relationships, res.PlotThreads, res.TimelineEvents, res.Conflicts,
	} {
		for i := range group {
			group[i].ConfidenceScore = domain.ClampConfidence(group[i].ConfidenceScore)
		}
	}
	return &res, nil
}

// fillStats replaces self-reported stats with what was actually observed.
func fillStats(res *domain.ExtractionResult, chunks int, elapsed time.Duration) {
	res.ProcessingStats.ChunksProcessed = chunks
	res.ProcessingStats.ExtractionsFound = res.Count()
	res.ProcessingStats.ProcessingTime = elapsed.Milliseconds()

	var sum float64
	var n int
	for _, group := range [][]domain.ExtractedFact{
		res.Characters, res.Relationships, res.PlotThreads, res.TimelineEvents, res.Conflicts,
	} {
		for _, f := range group {
			sum += f.ConfidenceScore
			n++
		}
	}
	res.ProcessingStats.ConfidenceAverage = 0
	if n > 0 {
		res.ProcessingStats.ConfidenceAverage = sum / float64(n)
	}
}

func batch(chunks []domain.ChunkRef, size int) [][]domain.ChunkRef {
	var out [][]domain.ChunkRef
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		out = append(out, chunks[start:end])
	}
	return out
}

func render(chunks []domain.ChunkRef) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "[%s #%d]\n%s\n\n", c.DocumentID, c.ChunkIndex, c.Content)
	}
	return strings.TrimSpace(b.String())
}

func describe(t domain.ExtractionType) string {
	switch t {
	case domain.ExtractCharacters:
		return "characters"
	case domain.ExtractRelationships:
		return "relationships between characters"
	case domain.ExtractPlotThreads:
		return "plot threads"
	case domain.ExtractTimelineEvents:
		return "timeline events"
	default:
		return "characters, relationships, plot threads and timeline events"
	}
}
