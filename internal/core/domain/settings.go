package domain

import (
	"slices"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider names an LLM backend.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

type providerInfo struct {
	id           AIProvider
	description  string
	defaultModel string
	local        bool
}

// providers is ordered the way setup menus list them.
var providers = []providerInfo{
	{AIProviderOllama, "Ollama (local)", "llama3.2", true},
	{AIProviderOpenAI, "OpenAI (cloud)", "gpt-4o-mini", false},
	{AIProviderAnthropic, "Anthropic (cloud)", "claude-3-5-sonnet-latest", false},
}

func (p AIProvider) info() (providerInfo, bool) {
	i := slices.IndexFunc(providers, func(e providerInfo) bool { return e.id == p })
	if i < 0 {
		return providerInfo{}, false
	}
	return providers[i], true
}

func (p AIProvider) IsValid() bool {
	_, ok := p.info()
	return ok
}

// RequiresAPIKey is true for the hosted providers.
func (p AIProvider) RequiresAPIKey() bool {
	info, ok := p.info()
	return ok && !info.local
}

func (p AIProvider) IsLocal() bool {
	info, _ := p.info()
	return info.local
}

func (p AIProvider) String() string { return string(p) }

// Description is the label shown in menus and status output.
func (p AIProvider) Description() string {
	if info, ok := p.info(); ok {
		return info.description
	}
	return unknownDescription
}

// AllLLMProviders lists providers in menu order.
func AllLLMProviders() []AIProvider {
	out := make([]AIProvider, len(providers))
	for i, e := range providers {
		out[i] = e.id
	}
	return out
}

// DefaultLLMModels maps each provider to the model used when none is given.
func DefaultLLMModels() map[AIProvider]string {
	out := make(map[AIProvider]string, len(providers))
	for _, e := range providers {
		out[e.id] = e.defaultModel
	}
	return out
}

// LLMSettings selects and authenticates the LLM. BaseURL applies to Ollama,
// APIKey to the hosted providers.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured reports whether the provider is known and, if hosted, has a key.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && (!l.Provider.RequiresAPIKey() || l.APIKey != "")
}

// PipelineSettings tunes analysis jobs.
type PipelineSettings struct {
	// JobTimeout fails active jobs and enhancements that run longer.
	JobTimeout    time.Duration
	SweepInterval time.Duration

	// ChunkSize and ChunkOverlap are measured in characters.
	ChunkSize    int
	ChunkOverlap int

	// BatchSize is chunks per extraction request; Parallelism bounds
	// concurrent requests.
	BatchSize   int
	Parallelism int

	// LowConfidenceThreshold flags facts for human review.
	LowConfidenceThreshold float64
}

// RateLimitSettings configure the per-key limiter in front of the LLM.
type RateLimitSettings struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration
}

// StatusBackend selects how job status reaches subscribers.
type StatusBackend string

const (
	StatusBackendMemory  StatusBackend = "memory"
	StatusBackendRedis   StatusBackend = "redis"
	StatusBackendPolling StatusBackend = "polling"
)

func (b StatusBackend) IsValid() bool {
	return b == StatusBackendMemory || b == StatusBackendRedis || b == StatusBackendPolling
}

const (
	MinPollInterval = 500 * time.Millisecond
	MaxPollInterval = 30 * time.Second
)

type StatusSettings struct {
	Backend StatusBackend
	// RedisAddr is host:port, used by the redis backend.
	RedisAddr string
	// PollInterval is used by the polling backend.
	PollInterval time.Duration
}

// ClampPollInterval bounds d to [MinPollInterval, MaxPollInterval].
func ClampPollInterval(d time.Duration) time.Duration {
	return min(max(d, MinPollInterval), MaxPollInterval)
}

// AppSettings is the full persisted configuration.
type AppSettings struct {
	LLM       LLMSettings
	Pipeline  PipelineSettings
	RateLimit RateLimitSettings
	Status    StatusSettings
}

// DefaultAppSettings leaves the LLM unset; everything else is usable as is.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Pipeline: PipelineSettings{
			JobTimeout:             30 * time.Minute,
			SweepInterval:          5 * time.Minute,
			ChunkSize:              2000,
			ChunkOverlap:           200,
			BatchSize:              4,
			Parallelism:            2,
			LowConfidenceThreshold: 0.6,
		},
		RateLimit: RateLimitSettings{RequestsPerSecond: 2, Burst: 4, IdleTTL: 10 * time.Minute},
		Status:    StatusSettings{Backend: StatusBackendMemory, PollInterval: 2 * time.Second},
	}
}
