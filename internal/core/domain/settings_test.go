package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider(t *testing.T) {
	tests := []struct {
		provider           AIProvider
		valid, key, local  bool
		description, model string
	}{
		{AIProviderOllama, true, false, true, "Ollama (local)", "llama3.2"},
		{AIProviderOpenAI, true, true, false, "OpenAI (cloud)", "gpt-4o-mini"},
		{AIProviderAnthropic, true, true, false, "Anthropic (cloud)", "claude-3-5-sonnet-latest"},
		{"", false, false, false, unknownDescription, ""},
		{"mistral", false, false, false, unknownDescription, ""},
	}
	models := DefaultLLMModels()
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
			assert.Equal(t, tt.key, tt.provider.RequiresAPIKey())
			assert.Equal(t, tt.local, tt.provider.IsLocal())
			assert.Equal(t, tt.description, tt.provider.Description())
			assert.Equal(t, tt.model, models[tt.provider])
		})
	}
	assert.Equal(t, []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}, AllLLMProviders())
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	cases := map[string]struct {
		settings LLMSettings
		want     bool
	}{
		"empty":               {LLMSettings{}, false},
		"ollama needs no key": {LLMSettings{Provider: AIProviderOllama}, true},
		"openai without key":  {LLMSettings{Provider: AIProviderOpenAI}, false},
		"anthropic with key":  {LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}, true},
		"unknown with key":    {LLMSettings{Provider: "nope", APIKey: "k"}, false},
	}
	for name, c := range cases {
		assert.Equal(t, c.want, c.settings.IsConfigured(), name)
	}
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.False(t, s.LLM.IsConfigured())
	assert.Equal(t, 30*time.Minute, s.Pipeline.JobTimeout)
	assert.Equal(t, 5*time.Minute, s.Pipeline.SweepInterval)
	assert.Greater(t, s.Pipeline.ChunkSize, s.Pipeline.ChunkOverlap)
	assert.Positive(t, s.Pipeline.BatchSize)
	assert.Positive(t, s.Pipeline.Parallelism)
	assert.InDelta(t, 0.6, s.Pipeline.LowConfidenceThreshold, 1e-9)
	assert.Positive(t, s.RateLimit.RequestsPerSecond)
	assert.Positive(t, s.RateLimit.Burst)
	assert.Equal(t, StatusBackendMemory, s.Status.Backend)
	assert.Equal(t, 2*time.Second, s.Status.PollInterval)
}

func TestStatusBackend_IsValid(t *testing.T) {
	for _, b := range []StatusBackend{StatusBackendMemory, StatusBackendRedis, StatusBackendPolling} {
		assert.True(t, b.IsValid(), b)
	}
	assert.False(t, StatusBackend("kafka").IsValid())
}

func TestClampPollInterval(t *testing.T) {
	assert.Equal(t, MinPollInterval, ClampPollInterval(0))
	assert.Equal(t, MinPollInterval, ClampPollInterval(100*time.Millisecond))
	assert.Equal(t, 2*time.Second, ClampPollInterval(2*time.Second))
	assert.Equal(t, MaxPollInterval, ClampPollInterval(time.Minute))
}
