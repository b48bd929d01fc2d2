package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure Enhancer implements the interface.
var _ driven.Enhancer = (*Enhancer)(nil)

// Default enhancement settings.
const (
	DefaultEnhanceTemperature = 0.4
	DefaultEnhanceTimeout     = 3 * time.Minute
)

// Enhancer asks the LLM for a polished rewrite of a passage.
type Enhancer struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	limiter driven.RateLimiter
	timeout time.Duration
}

// NewEnhancer creates an enhancer.
func NewEnhancer(llm driven.LLMService, prompts driven.PromptStore) *Enhancer {
	return &Enhancer{llm: llm, prompts: prompts, timeout: DefaultEnhanceTimeout}
}

// SetRateLimiter throttles enhancement calls under a shared key.
func (e *Enhancer) SetRateLimiter(limiter driven.RateLimiter) {
	e.limiter = limiter
}

// Enhance returns the rewritten text. Code fences around the answer are removed.
func (e *Enhancer) Enhance(ctx context.Context, text string) (string, error) {
	if e.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	template, err := e.prompts.Load(driven.PromptEnhancement)
	if err != nil {
		return "", fmt.Errorf("loading enhancement prompt: %w", err)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, "enhancement"); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Roughly one token per three bytes, with headroom for expansion.
	maxTokens := max(512, len(text)/2)
	out, err := e.llm.Generate(callCtx, fmt.Sprintf(template, text), driven.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: DefaultEnhanceTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("enhance: %w", err)
	}
	out = stripFence(strings.TrimSpace(out))
	if out == "" {
		return "", fmt.Errorf("%w: empty rewrite", domain.ErrGatewayMalformedResponse)
	}
	return out, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
