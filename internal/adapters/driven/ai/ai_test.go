package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func ollama(t *testing.T, status int) *domain.LLMSettings {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "down", status)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)
	return &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2", BaseURL: srv.URL}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		model    string
	}{
		{"nil settings", nil, ""},
		{"unconfigured", &domain.LLMSettings{}, ""},
		{"cloud provider without key", &domain.LLMSettings{Provider: domain.AIProviderOpenAI}, ""},
		{"unknown provider", &domain.LLMSettings{Provider: "unknown", APIKey: "k"}, ""},
		{"ollama", &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}, "llama3.2"},
		{"openai", &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"}, "gpt-4o-mini"},
		{"anthropic default model", &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, "claude-3-5-sonnet-latest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := New(tt.settings)
			require.NoError(t, err)
			if tt.model == "" {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			defer svc.Close()
			assert.Equal(t, tt.model, svc.ModelName())
		})
	}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	svc, err := Connect(ctx, ollama(t, http.StatusOK))
	require.NoError(t, err)
	require.NotNil(t, svc)
	svc.Close()

	_, err = Connect(ctx, ollama(t, http.StatusServiceUnavailable))
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.ErrorContains(t, err, "unreachable")

	_, err = Connect(ctx, &domain.LLMSettings{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.ErrorContains(t, err, "no LLM provider configured")
}

func TestValidator(t *testing.T) {
	var v Validator
	assert.NoError(t, v.ValidateLLM(nil))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Model: "m"}))
	assert.NoError(t, v.ValidateLLM(ollama(t, http.StatusOK)))
	assert.ErrorIs(t, v.ValidateLLM(ollama(t, http.StatusBadGateway)), domain.ErrLLMUnavailable)
}
