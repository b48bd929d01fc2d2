package driving

import "github.com/custodia-labs/lorekeeper/internal/core/domain"

// SettingsService reads and changes the persisted configuration. Reads never
// fail on bad values; they fall back to GetDefaults.
type SettingsService interface {
	Get() (*domain.AppSettings, error)
	Save(settings *domain.AppSettings) error
	GetDefaults() domain.AppSettings

	// SetLLMProvider picks the provider's default model when model is empty.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error
	// SetStatusBackend requires redisAddr for the redis backend.
	SetStatusBackend(backend domain.StatusBackend, redisAddr string) error

	// Validate checks consistency between settings without network access.
	Validate() error
	// ValidateLLMConfig contacts the configured provider.
	ValidateLLMConfig() error
}
