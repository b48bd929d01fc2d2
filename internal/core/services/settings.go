package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"

	keyJobTimeout     = "pipeline.job_timeout_minutes"
	keySweepInterval  = "pipeline.sweep_interval_minutes"
	keyChunkSize      = "pipeline.chunk_size"
	keyChunkOverlap   = "pipeline.chunk_overlap"
	keyBatchSize      = "pipeline.batch_size"
	keyParallelism    = "pipeline.parallelism"
	keyLowConfidence  = "pipeline.low_confidence_threshold"
	keyRatePerSecond  = "ratelimit.requests_per_second"
	keyRateBurst      = "ratelimit.burst"
	keyRateIdleTTL    = "ratelimit.idle_ttl_minutes"
	keyStatusBackend  = "status.backend"
	keyStatusRedis    = "status.redis_addr"
	keyStatusPollSecs = "status.poll_interval_seconds"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get reads current settings. Missing, malformed or out-of-range values fall
// back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.getString(keyLLMBaseURL, ""),
			APIKey:   s.getString(keyLLMAPIKey, ""),
		},
		Pipeline: domain.PipelineSettings{
			JobTimeout:             s.getMinutes(keyJobTimeout, defaults.Pipeline.JobTimeout),
			SweepInterval:          s.getMinutes(keySweepInterval, defaults.Pipeline.SweepInterval),
			ChunkSize:              s.getInt(keyChunkSize, defaults.Pipeline.ChunkSize),
			ChunkOverlap:           s.getNonNegativeInt(keyChunkOverlap, defaults.Pipeline.ChunkOverlap),
			BatchSize:              s.getInt(keyBatchSize, defaults.Pipeline.BatchSize),
			Parallelism:            s.getInt(keyParallelism, defaults.Pipeline.Parallelism),
			LowConfidenceThreshold: s.getUnitFloat(keyLowConfidence, defaults.Pipeline.LowConfidenceThreshold),
		},
		RateLimit: domain.RateLimitSettings{
			RequestsPerSecond: s.getPositiveFloat(keyRatePerSecond, defaults.RateLimit.RequestsPerSecond),
			Burst:             s.getInt(keyRateBurst, defaults.RateLimit.Burst),
			IdleTTL:           s.getMinutes(keyRateIdleTTL, defaults.RateLimit.IdleTTL),
		},
		Status: domain.StatusSettings{
			Backend:      s.getStatusBackend(defaults.Status.Backend),
			RedisAddr:    s.getString(keyStatusRedis, ""),
			PollInterval: s.getPollInterval(defaults.Status.PollInterval),
		},
	}

	return settings, nil
}

// Save writes every setting in one update. An empty API key leaves the
// stored key alone.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := map[string]any{
		keyLLMProvider:    settings.LLM.Provider.String(),
		keyLLMModel:       settings.LLM.Model,
		keyLLMBaseURL:     settings.LLM.BaseURL,
		keyJobTimeout:     int(settings.Pipeline.JobTimeout / time.Minute),
		keySweepInterval:  int(settings.Pipeline.SweepInterval / time.Minute),
		keyChunkSize:      settings.Pipeline.ChunkSize,
		keyChunkOverlap:   settings.Pipeline.ChunkOverlap,
		keyBatchSize:      settings.Pipeline.BatchSize,
		keyParallelism:    settings.Pipeline.Parallelism,
		keyLowConfidence:  settings.Pipeline.LowConfidenceThreshold,
		keyRatePerSecond:  settings.RateLimit.RequestsPerSecond,
		keyRateBurst:      settings.RateLimit.Burst,
		keyRateIdleTTL:    int(settings.RateLimit.IdleTTL / time.Minute),
		keyStatusBackend:  string(settings.Status.Backend),
		keyStatusRedis:    settings.Status.RedisAddr,
		keyStatusPollSecs: settings.Status.PollInterval.Seconds(),
	}
	if settings.LLM.APIKey != "" {
		values[keyLLMAPIKey] = settings.LLM.APIKey
	}

	if err := s.configStore.Update(values); err != nil {
		return fmt.Errorf("saving settings to %s: %w", s.configStore.Path(), err)
	}
	return nil
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		defaults := domain.DefaultLLMModels()
		if defaultModel, ok := defaults[provider]; ok {
			settings.LLM.Model = defaultModel
		}
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		// Local providers need a base URL
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetStatusBackend selects how job status reaches subscribers.
func (s *SettingsService) SetStatusBackend(backend domain.StatusBackend, redisAddr string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid status backend: %s", domain.ErrInvalidInput, backend)
	}
	if backend == domain.StatusBackendRedis && redisAddr == "" {
		return fmt.Errorf("%w: redis address required for the redis backend", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Status.Backend = backend
	if backend == domain.StatusBackendRedis {
		settings.Status.RedisAddr = redisAddr
	}
	return s.Save(settings)
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %q is not fully configured", settings.LLM.Provider.Description())
	}
	if settings.Pipeline.ChunkOverlap >= settings.Pipeline.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			settings.Pipeline.ChunkOverlap, settings.Pipeline.ChunkSize)
	}
	if settings.Status.Backend == domain.StatusBackendRedis && settings.Status.RedisAddr == "" {
		return fmt.Errorf("status backend redis requires %s", keyStatusRedis)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Config values arrive as whatever the store decoded: TOML gives int64 and
// float64, environment overrides give strings.

func (s *SettingsService) number(key string) (float64, bool) {
	v, ok := s.configStore.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (s *SettingsService) getString(key, defaultVal string) string {
	v, _ := s.configStore.Get(key)
	if str, ok := v.(string); ok && str != "" {
		return str
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	n, ok := s.number(key)
	if !ok || n < 1 {
		return defaultVal
	}
	return int(n)
}

func (s *SettingsService) getNonNegativeInt(key string, defaultVal int) int {
	n, ok := s.number(key)
	if !ok || n < 0 {
		return defaultVal
	}
	return int(n)
}

func (s *SettingsService) getMinutes(key string, defaultVal time.Duration) time.Duration {
	return time.Duration(s.getInt(key, int(defaultVal/time.Minute))) * time.Minute
}

func (s *SettingsService) getPositiveFloat(key string, defaultVal float64) float64 {
	n, ok := s.number(key)
	if !ok || n <= 0 {
		return defaultVal
	}
	return n
}

func (s *SettingsService) getUnitFloat(key string, defaultVal float64) float64 {
	n, ok := s.number(key)
	if !ok || n < 0 || n > 1 {
		return defaultVal
	}
	return n
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.getString(key, ""))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getStatusBackend(defaultVal domain.StatusBackend) domain.StatusBackend {
	backend := domain.StatusBackend(s.getString(keyStatusBackend, ""))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getPollInterval(defaultVal time.Duration) time.Duration {
	secs := s.getPositiveFloat(keyStatusPollSecs, 0)
	if secs == 0 {
		return defaultVal
	}
	return domain.ClampPollInterval(time.Duration(secs * float64(time.Second)))
}
