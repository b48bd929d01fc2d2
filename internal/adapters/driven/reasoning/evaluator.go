package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure Evaluator implements the interface.
var _ driven.MergeEvaluator = (*Evaluator)(nil)

const mergeSystemPrompt = "You are a meticulous continuity editor. Reply with JSON only."

// Evaluator asks the LLM whether a candidate duplicates existing knowledge.
// The raw answer is returned untouched; the arbiter validates it.
type Evaluator struct {
	llm driven.LLMService
}

// NewEvaluator creates a merge evaluator.
func NewEvaluator(llm driven.LLMService) *Evaluator {
	return &Evaluator{llm: llm}
}

// Evaluate sends the prompt as a chat turn and returns the raw reply.
func (e *Evaluator) Evaluate(ctx context.Context, req driven.MergeEvaluationRequest) (string, error) {
	if e.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	if req.Prompt == "" {
		return "", errors.New("empty merge prompt")
	}
	raw, err := e.llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: mergeSystemPrompt},
		{Role: driven.RoleUser, Content: req.Prompt},
	}, driven.ChatOptions{
		MaxTokens:   req.Options.MaxTokens,
		Temperature: req.Options.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("evaluate %s: %w", req.ItemType, err)
	}
	return raw, nil
}
