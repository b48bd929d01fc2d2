// Package ai builds the LLM adapter named by the user's settings.
package ai

import (
	"context"
	"fmt"
	"time"

	anthropicllm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// PingTimeout bounds the reachability check made before an adapter is used.
const PingTimeout = 5 * time.Second

type builder func(*domain.LLMSettings) (driven.LLMService, error)

var builders = map[domain.AIProvider]builder{
	domain.AIProviderOllama: func(s *domain.LLMSettings) (driven.LLMService, error) {
		return ollamallm.NewLLMService(ollamallm.Config{BaseURL: s.BaseURL, Model: s.Model, JSONMode: true}), nil
	},
	domain.AIProviderOpenAI: func(s *domain.LLMSettings) (driven.LLMService, error) {
		return openaillm.NewLLMService(openaillm.Config{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model})
	},
	domain.AIProviderAnthropic: func(s *domain.LLMSettings) (driven.LLMService, error) {
		return anthropicllm.NewLLMService(anthropicllm.Config{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model})
	},
}

// New builds the adapter without contacting the provider. Unconfigured
// settings yield a nil service and no error.
func New(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	build, ok := builders[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported LLM provider %s", domain.ErrInvalidInput, settings.Provider)
	}
	return build(settings)
}

// Connect builds the adapter and pings it. Failures wrap
// domain.ErrLLMUnavailable so commands can say what to fix.
func Connect(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := New(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: no LLM provider configured", domain.ErrLLMUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		err = fmt.Errorf("%w: %s (%s) unreachable: %w",
			domain.ErrLLMUnavailable, settings.Provider.Description(), svc.ModelName(), err)
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

var _ driven.AIConfigValidator = Validator{}

// Validator checks settings by connecting once and closing again.
type Validator struct{}

// ValidateLLM accepts unconfigured settings: there is nothing to reach.
func (Validator) ValidateLLM(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := Connect(context.Background(), settings)
	if err != nil {
		return err
	}
	return svc.Close()
}
