// Package anthropic calls the Anthropic Messages API.
package anthropic

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultModel      = "claude-3-5-sonnet-latest"
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 2
	// DefaultMaxTokens applies when the caller gives none; the API
	// requires a limit on every request.
	DefaultMaxTokens = 1024
)

// Config for NewLLMService. APIKey is required. MaxRetries of zero means
// DefaultMaxRetries; negative disables retries.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type LLMService struct {
	client anthropic.Client
	model  string
}

func NewLLMService(cfg Config) (*LLMService, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	}

	return &LLMService{
		client: anthropic.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cmp.Or(cfg.BaseURL, DefaultBaseURL)),
			option.WithRequestTimeout(cmp.Or(cfg.Timeout, DefaultTimeout)),
			option.WithMaxRetries(max(retries, 0)),
		),
		model: cmp.Or(cfg.Model, DefaultModel),
	}, nil
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	params := s.params([]driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, opts.MaxTokens, opts.Temperature)
	params.StopSequences = opts.StopWords
	return s.complete(ctx, params)
}

// Chat folds system messages into the request's system prompt.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, s.params(messages, opts.MaxTokens, opts.Temperature))
}

func (s *LLMService) params(messages []driven.ChatMessage, maxTokens int, temperature float64) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(cmp.Or(max(maxTokens, 0), DefaultMaxTokens)),
	}
	var system []string
	for _, m := range messages {
		switch m.Role {
		case driven.RoleSystem:
			system = append(system, m.Content)
		case driven.RoleAssistant:
			p.Messages = append(p.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			p.Messages = append(p.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		p.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if temperature > 0 {
		p.Temperature = anthropic.Float(temperature)
	}
	return p
}

func (s *LLMService) complete(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify("messages", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic: no text content returned")
	}
	return text.String(), nil
}

// classify tags throttling, overload and credential failures with the
// matching domain error.
func classify(op string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, 529:
			return fmt.Errorf("anthropic: %s: %w: %w", op, domain.ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("anthropic: %s: %w: %w", op, domain.ErrLLMUnavailable, err)
		}
	}
	return fmt.Errorf("anthropic: %s: %w", op, err)
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which checks the key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return classify("ping", err)
	}
	return nil
}

func (s *LLMService) Close() error { return nil }
