// Package ollama talks to a local Ollama server over its HTTP API.
package ollama

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// errBodyLimit caps how much of a failed response is read.
const errBodyLimit = 512

// Config for NewLLMService. Zero fields take the defaults above.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// JSONMode sets format=json so the server constrains output to a JSON
	// value. Extraction and merge prompts rely on it.
	JSONMode bool
}

type LLMService struct {
	http     *http.Client
	endpoint string
	model    string
	format   string
}

func NewLLMService(cfg Config) *LLMService {
	s := &LLMService{
		http:     &http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultTimeout)},
		endpoint: strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		model:    cmp.Or(cfg.Model, DefaultModel),
	}
	if cfg.JSONMode {
		s.format = "json"
	}
	return s
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request covers both /api/generate (Prompt) and /api/chat (Messages).
type request struct {
	Model    string         `json:"model"`
	Prompt   string         `json:"prompt,omitempty"`
	Messages []message      `json:"messages,omitempty"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

func options(maxTokens int, temperature float64, stop []string) map[string]any {
	o := map[string]any{}
	if maxTokens > 0 {
		o["num_predict"] = maxTokens
	}
	if temperature > 0 {
		o["temperature"] = temperature
	}
	if len(stop) > 0 {
		o["stop"] = stop
	}
	if len(o) == 0 {
		return nil
	}
	return o
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.complete(ctx, "/api/generate", "response", request{
		Prompt:  prompt,
		Options: options(opts.MaxTokens, opts.Temperature, opts.StopWords),
	})
}

func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	msgs := make([]message, len(messages))
	for i, m := range messages {
		msgs[i] = message(m)
	}
	return s.complete(ctx, "/api/chat", "message.content", request{
		Messages: msgs,
		Options:  options(opts.MaxTokens, opts.Temperature, nil),
	})
}

// complete posts a non-streaming request and returns the string found at
// path in the response body.
func (s *LLMService) complete(ctx context.Context, endpoint, path string, req request) (string, error) {
	req.Model, req.Format = s.model, s.format
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ollama: encoding request: %w", err)
	}

	body, err := s.do(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	reply := gjson.GetBytes(body, path)
	if !reply.Exists() {
		return "", fmt.Errorf("ollama: %s response has no %s", endpoint, path)
	}
	return reply.String(), nil
}

func (s *LLMService) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		detail := strings.TrimSpace(string(raw))
		if msg := gjson.GetBytes(raw, "error"); msg.Exists() {
			detail = msg.String()
		}
		return nil, fmt.Errorf("ollama: %s returned status %d: %s", endpoint, resp.StatusCode, detail)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: reading %s response: %w", endpoint, err)
	}
	return out, nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists installed models, which needs no inference.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/api/tags", http.NoBody)
	return err
}

func (s *LLMService) Close() error { return nil }
