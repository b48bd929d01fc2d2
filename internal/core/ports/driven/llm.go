package driven

import "context"

// Chat roles understood by every LLM adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMService is the language model behind extraction, merge evaluation and
// enhancement. Adapters exist for OpenAI, Anthropic and Ollama; callers never
// depend on which one is configured.
type LLMService interface {
	// Generate answers a single prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	// Chat answers the last message given the conversation so far.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
	ModelName() string
	// Ping makes the cheapest request the provider allows.
	Ping(ctx context.Context) error
	Close() error
}

// GenerateOptions tunes a single-prompt call. Zero values mean the
// provider default.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	// StopWords end generation early; extraction prompts use them to cut
	// trailing chatter after the JSON payload.
	StopWords []string
}

// ChatMessage is one turn. Role is RoleSystem, RoleUser or RoleAssistant.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions tunes a chat call.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}
