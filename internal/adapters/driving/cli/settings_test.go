package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/services"
)

type stubLLMValidator struct {
	err error
}

func (v stubLLMValidator) ValidateLLM(*domain.LLMSettings) error {
	return v.err
}

func withSettings(t *testing.T, validatorErr error) *services.SettingsService {
	t.Helper()
	svc := services.NewSettingsService(memory.NewConfigStore(), stubLLMValidator{err: validatorErr})
	withServices(t, &Services{Settings: svc})
	return svc
}

func TestSettingsShow(t *testing.T) {
	withSettings(t, nil)

	out, err := execute(t, nil, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Provider: (not set)")
	assert.Contains(t, out, "[Pipeline]")
	assert.Contains(t, out, "Low confidence below: 0.60")
	assert.Contains(t, out, "Backend: memory")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsLLM(t *testing.T) {
	t.Run("anthropic with key", func(t *testing.T) {
		svc := withSettings(t, nil)

		out, err := execute(t, strings.NewReader("3\n\nsk-ant-0123456789\n"), "settings", "llm")
		require.NoError(t, err)
		assert.Contains(t, out, "Validating configuration... OK")

		settings, err := svc.Get()
		require.NoError(t, err)
		assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
		assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)
		assert.Equal(t, "sk-ant-0123456789", settings.LLM.APIKey)

		out, err = execute(t, nil, "settings", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "API Key: sk-a...6789")
		assert.NotContains(t, out, "sk-ant-0123456789")
	})

	t.Run("missing key", func(t *testing.T) {
		withSettings(t, nil)

		_, err := execute(t, strings.NewReader("2\ngpt-4o\n\n"), "settings", "llm")
		assert.ErrorContains(t, err, "API key is required")
	})

	t.Run("validation failure", func(t *testing.T) {
		withSettings(t, errors.New("connection refused"))

		out, err := execute(t, strings.NewReader("1\n\n"), "settings", "llm")
		require.Error(t, err)
		assert.Contains(t, out, "FAILED: connection refused")
	})
}

func TestSettingsStatusBackend(t *testing.T) {
	svc := withSettings(t, nil)

	out, err := execute(t, strings.NewReader("2\n\n"), "settings", "status-backend")
	require.NoError(t, err)
	assert.Contains(t, out, "Status backend set to: redis")

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBackendRedis, settings.Status.Backend)
	assert.Equal(t, defaultRedisAddr, settings.Status.RedisAddr)
}

func TestParseChoice(t *testing.T) {
	cases := map[string]int{
		"":    2,
		"1":   1,
		"3":   3,
		"0":   2,
		"4":   2,
		"-1":  2,
		"two": 2,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseChoice(in, 3, 2), "input %q", in)
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey(""))
	assert.Equal(t, "****", maskAPIKey("12345678"))
	assert.Equal(t, "sk-p...mnop", maskAPIKey("sk-proj-abcdefghijklmnop"))
}

func TestSettingsShowJSON(t *testing.T) {
	svc := withSettings(t, nil)
	require.NoError(t, svc.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o", "sk-proj-abcdefghijklmnop"))

	out, err := execute(t, nil, "settings", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"APIKey": "sk-p...mnop"`)
	assert.Contains(t, out, `"Backend": "memory"`)
	assert.NotContains(t, out, "abcdefghijkl")
}

func TestSettingsWizard(t *testing.T) {
	svc := withSettings(t, nil)

	out, err := execute(t, strings.NewReader("1\nmistral\n3\n"), "settings", "wizard")
	require.NoError(t, err)
	assert.Contains(t, out, "1/2 LLM provider")
	assert.Contains(t, out, "LLM provider configured: Ollama (local) (mistral)")
	assert.Contains(t, out, "Status backend set to: polling")

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "mistral", settings.LLM.Model)
	assert.Equal(t, domain.StatusBackendPolling, settings.Status.Backend)
}
