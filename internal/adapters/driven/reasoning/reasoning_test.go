package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	mu       sync.Mutex
	prompts  []string
	messages [][]driven.ChatMessage
	reply    func(prompt string) (string, error)
	calls    atomic.Int32
}

var _ driven.LLMService = (*mockLLM)(nil)

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.reply(prompt)
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.messages = append(m.messages, messages)
	m.mu.Unlock()
	return m.reply(messages[len(messages)-1].Content)
}

func (m *mockLLM) ModelName() string            { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockPrompts implements driven.PromptStore for testing.
type mockPrompts struct{}

var _ driven.PromptStore = (*mockPrompts)(nil)

func (mockPrompts) Load(name string) (string, error) {
	switch name {
	case driven.PromptExtraction:
		return "type=%s known=%s text=%s", nil
	case driven.PromptEnhancement:
		return "improve: %s", nil
	default:
		return "", fmt.Errorf("unknown prompt %q", name)
	}
}

func (mockPrompts) Reload() {}

// mockLimiter implements driven.RateLimiter for testing.
type mockLimiter struct {
	mu   sync.Mutex
	err  error
	keys []string
}

var _ driven.RateLimiter = (*mockLimiter)(nil)

func (m *mockLimiter) Wait(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return m.err
}
func (m *mockLimiter) Allow(string) bool { return m.err == nil }
func (m *mockLimiter) Reset(string)      {}

func chunks(n int) []domain.ChunkRef {
	out := make([]domain.ChunkRef, n)
	for i := range out {
		out[i] = domain.ChunkRef{ID: fmt.Sprintf("c%d", i), Content: fmt.Sprintf("text %d", i), ChunkIndex: i, DocumentID: "d1"}
	}
	return out
}

const oneCharacter = `{"characters":[{"name":"Mara","confidence_score":0.8}],` +
	`"processingStats":{"chunksProcessed":99,"extractionsFound":99}}`

func TestGateway_Extract_BatchesAndMerges(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return oneCharacter, nil }}
	gw := NewGateway(llm, mockPrompts{}, GatewayConfig{BatchSize: 2, Parallelism: 3})
	limiter := &mockLimiter{}
	gw.SetRateLimiter(limiter)

	res, err := gw.Extract(context.Background(), domain.ExtractionRequest{
		Chunks:         chunks(5),
		ProjectID:      "p1",
		ExtractionType: domain.ExtractCharacters,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(3), llm.calls.Load())
	assert.Len(t, res.Characters, 3)
	assert.Equal(t, 5, res.ProcessingStats.ChunksProcessed)
	assert.Equal(t, 3, res.ProcessingStats.ExtractionsFound)
	assert.InDelta(t, 0.8, res.ProcessingStats.ConfidenceAverage, 1e-9)
	assert.Equal(t, []string{"p1", "p1", "p1"}, limiter.keys)
}

func TestGateway_Extract_PromptCarriesKnowledgeAndChunks(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return `{}`, nil }}
	gw := NewGateway(llm, mockPrompts{}, GatewayConfig{})

	_, err := gw.Extract(context.Background(), domain.ExtractionRequest{
		Chunks:            chunks(1),
		ProjectID:         "p1",
		ExtractionType:    domain.ExtractComprehensive,
		ExistingKnowledge: []domain.ExtractedFact{{Name: "Mara"}},
	})
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], `"name":"Mara"`)
	assert.Contains(t, llm.prompts[0], "text 0")
	assert.True(t, strings.HasPrefix(llm.prompts[0], "type=characters, relationships"))
}

func TestGateway_Extract_RecoversEmbeddedJSON(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) {
		return "Here you go:\n```json\n" + oneCharacter + "\n```\nDone.", nil
	}}
	gw := NewGateway(llm, mockPrompts{}, GatewayConfig{})

	res, err := gw.Extract(context.Background(), domain.ExtractionRequest{
		Chunks: chunks(1), ProjectID: "p1", ExtractionType: domain.ExtractCharacters,
	})
	require.NoError(t, err)
	require.Len(t, res.Characters, 1)
	assert.Equal(t, "Mara", res.Characters[0].Name)
}

func TestGateway_Extract_Malformed(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return "I could not find anything.", nil }}
	gw := NewGateway(llm, mockPrompts{}, GatewayConfig{})

	_, err := gw.Extract(context.Background(), domain.ExtractionRequest{
		Chunks: chunks(1), ProjectID: "p1", ExtractionType: domain.ExtractCharacters,
	})
	assert.ErrorIs(t, err, domain.ErrGatewayMalformedResponse)
}

func TestGateway_Extract_Unavailable(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return "", errors.New("connection refused") }}
	gw := NewGateway(llm, mockPrompts{}, GatewayConfig{BatchSize: 1})

	_, err := gw.Extract(context.Background(), domain.ExtractionRequest{
		Chunks: chunks(3), ProjectID: "p1", ExtractionType: domain.ExtractCharacters,
	})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestGateway_Extract_RateLimited(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return `{}`, nil }}
	gw := NewGateway(llm, mockPrompts{}, GatewayConfig{})
	gw.SetRateLimiter(&mockLimiter{err: context.DeadlineExceeded})

	_, err := gw.Extract(context.Background(), domain.ExtractionRequest{
		Chunks: chunks(1), ProjectID: "p1", ExtractionType: domain.ExtractCharacters,
	})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Zero(t, llm.calls.Load())
}

func TestGateway_Extract_InvalidType(t *testing.T) {
	gw := NewGateway(&mockLLM{}, mockPrompts{}, GatewayConfig{})

	_, err := gw.Extract(context.Background(), domain.ExtractionRequest{ExtractionType: "poems"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGateway_Extract_NoChunks(t *testing.T) {
	llm := &mockLLM{}
	gw := NewGateway(llm, mockPrompts{}, GatewayConfig{})

	res, err := gw.Extract(context.Background(), domain.ExtractionRequest{ExtractionType: domain.ExtractCharacters})
	require.NoError(t, err)
	assert.Zero(t, res.Count())
	assert.Zero(t, llm.calls.Load())
}

func TestGateway_Extract_NoLLM(t *testing.T) {
	gw := NewGateway(nil, mockPrompts{}, GatewayConfig{})

	_, err := gw.Extract(context.Background(), domain.ExtractionRequest{
		Chunks: chunks(1), ExtractionType: domain.ExtractCharacters,
	})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestParseExtraction_ClampsConfidence(t *testing.T) {
	res, err := ParseExtraction(`{"characters":[{"name":"A","confidence_score":1.7},{"name":"B","confidence_score":-2}]}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Characters[0].ConfidenceScore)
	assert.Equal(t, 0.0, res.Characters[1].ConfidenceScore)
}

func TestEvaluator_Evaluate(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return `{"action":"discard"}`, nil }}
	ev := NewEvaluator(llm)

	raw, err := ev.Evaluate(context.Background(), driven.MergeEvaluationRequest{
		Prompt:   "is this a duplicate?",
		ItemType: domain.CategoryCharacter,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"discard"}`, raw)
	require.Len(t, llm.messages, 1)
	assert.Equal(t, "system", llm.messages[0][0].Role)
	assert.Equal(t, "is this a duplicate?", llm.messages[0][1].Content)
}

func TestEvaluator_Errors(t *testing.T) {
	_, err := NewEvaluator(nil).Evaluate(context.Background(), driven.MergeEvaluationRequest{Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	llm := &mockLLM{reply: func(string) (string, error) { return "", assert.AnError }}
	_, err = NewEvaluator(llm).Evaluate(context.Background(), driven.MergeEvaluationRequest{Prompt: "x"})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = NewEvaluator(llm).Evaluate(context.Background(), driven.MergeEvaluationRequest{})
	assert.Error(t, err)
}

func TestEnhancer_Enhance(t *testing.T) {
	llm := &mockLLM{reply: func(prompt string) (string, error) {
		assert.Equal(t, "improve: the cat sat", prompt)
		return "```text\nThe cat sat.\n```", nil
	}}
	e := NewEnhancer(llm, mockPrompts{})
	limiter := &mockLimiter{}
	e.SetRateLimiter(limiter)

	out, err := e.Enhance(context.Background(), "the cat sat")
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", out)
	assert.Len(t, limiter.keys, 1)
}

func TestEnhancer_EmptyRewrite(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return "  ", nil }}

	_, err := NewEnhancer(llm, mockPrompts{}).Enhance(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrGatewayMalformedResponse)
}

func TestEnhancer_NoLLM(t *testing.T) {
	_, err := NewEnhancer(nil, mockPrompts{}).Enhance(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "plain", stripFence("plain"))
	assert.Equal(t, "body", stripFence("```\nbody\n```"))
	assert.Equal(t, "", stripFence("```"))
}
