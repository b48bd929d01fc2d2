package driven

import "github.com/custodia-labs/lorekeeper/internal/core/domain"

// AIConfigValidator proves settings work before they are relied on. Settings
// with no provider are valid.
type AIConfigValidator interface {
	ValidateLLM(settings *domain.LLMSettings) error
}
