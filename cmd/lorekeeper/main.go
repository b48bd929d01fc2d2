// Package main is the lorekeeper entry point. It wires the driven adapters
// into the core services and hands them to the CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/ai"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/reasoning"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/statusbus/memory"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/statusbus/polling"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/statusbus/redis"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/cli"
	"github.com/custodia-labs/lorekeeper/internal/connectors/filesystem"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/core/services"
	"github.com/custodia-labs/lorekeeper/internal/logger"
	"github.com/custodia-labs/lorekeeper/internal/normalisers"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap opens the stores and builds every service for one command run.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*cli.Services, func(), error) {
		cleanup()
		return nil, nil, err
	}

	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return fail(fmt.Errorf("opening config: %w", err))
	}
	promptDir := ""
	if opts.ConfigDir != "" {
		promptDir = filepath.Join(opts.ConfigDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		return fail(fmt.Errorf("opening prompts: %w", err))
	}

	settingsSvc := services.NewSettingsService(configStore, ai.Validator{})
	settings, err := settingsSvc.Get()
	if err != nil {
		return fail(fmt.Errorf("loading settings: %w", err))
	}

	store, err := sqlite.NewStore(opts.DataDir)
	if err != nil {
		return fail(fmt.Errorf("opening store: %w", err))
	}
	closers = append(closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store: %v", err)
		}
	})
	logger.Debug("store: %s", store.Path())

	// Without a reachable LLM the services still open; analysis then fails
	// with ErrLLMUnavailable.
	llm, err := ai.Connect(ctx, &settings.LLM)
	if err != nil {
		logger.Debug("llm: %v", err)
	} else {
		closers = append(closers, func() { _ = llm.Close() })
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: settings.RateLimit.RequestsPerSecond,
		Burst:             settings.RateLimit.Burst,
		IdleTTL:           settings.RateLimit.IdleTTL,
	})

	gateway := reasoning.NewGateway(llm, prompts, reasoning.GatewayConfig{
		BatchSize:   settings.Pipeline.BatchSize,
		Parallelism: settings.Pipeline.Parallelism,
	})
	gateway.SetRateLimiter(limiter)

	enhancer := reasoning.NewEnhancer(llm, prompts)
	enhancer.SetRateLimiter(limiter)

	arbiter := services.NewArbiterService(reasoning.NewEvaluator(llm), store.MergeAuditLog())
	arbiter.SetRateLimiter(limiter)
	arbiter.SetPromptStore(prompts)

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Pipeline)
	if err != nil {
		return fail(fmt.Errorf("building pipeline: %w", err))
	}

	bus, err := openStatusBus(ctx, settings.Status, store.JobStore())
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = bus.Close() })

	supervisor := services.NewSupervisorService(store.JobStore(), store.EnhancementStore(), settings.Pipeline.JobTimeout)
	supervisor.SetStatusBus(bus)
	closers = append(closers, supervisor.Stop)

	staleness := services.NewStalenessService(store.DocumentStore(), store.FingerprintStore())

	jobs := services.NewJobService(
		store.JobStore(),
		store.DocumentStore(),
		store.KnowledgeStore(),
		store.RunCommitter(),
		pipeline,
		gateway,
		staleness,
		arbiter,
		settings.Pipeline,
	)
	jobs.SetStatusBus(bus)
	jobs.SetSupervisor(supervisor)
	jobs.SetAuditLog(store.MergeAuditLog())

	enhancement := services.NewEnhancementService(
		store.DocumentStore(),
		store.EnhancementStore(),
		store.ChangeStore(),
		enhancer,
		services.NewChangeTrackerService(),
		services.NewChangeApplicatorService(),
	)
	enhancement.SetSupervisor(supervisor)

	schedCfg := domain.DefaultSchedulerConfig()
	if settings.Pipeline.SweepInterval > 0 {
		sweep := schedCfg.TaskConfigs[domain.TaskIDJobTimeoutSweep]
		sweep.Interval = settings.Pipeline.SweepInterval
		schedCfg.TaskConfigs[domain.TaskIDJobTimeoutSweep] = sweep
	}
	sched := services.NewScheduler(schedCfg, store.SchedulerStore(), supervisor, jobs, staleness, store.DocumentStore())

	docs := store.DocumentStore()
	registry := normalisers.Defaults()
	openManuscript := func(projectID, root string) (driving.ManuscriptService, func() error, error) {
		info, err := os.Stat(root)
		if err != nil {
			return nil, nil, fmt.Errorf("opening manuscript: %w", err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
		}
		source := filesystem.New(projectID, root)
		return services.NewManuscriptService(source, registry, docs), source.Close, nil
	}

	return &cli.Services{
		Jobs:            jobs,
		Staleness:       staleness,
		Documents:       services.NewDocumentService(store.DocumentStore(), store.FingerprintStore()),
		Supervisor:      supervisor,
		Knowledge:       services.NewKnowledgeService(store.KnowledgeStore(), store.MergeAuditLog()),
		Enhancement:     enhancement,
		Hash:            services.NewHashService(),
		Settings:        settingsSvc,
		Scheduler:       sched,
		SchedulerConfig: schedCfg,
		Status:          bus,
		Manuscripts:     openManuscript,
	}, cleanup, nil
}

// openStatusBus picks the status delivery backend from settings. A redis
// backend that cannot be reached falls back to polling the job store so that
// separate processes still see each other's progress.
func openStatusBus(ctx context.Context, cfg domain.StatusSettings, jobs driven.JobStore) (driven.StatusBus, error) {
	switch cfg.Backend {
	case domain.StatusBackendRedis:
		bus, err := redis.New(ctx, cfg.RedisAddr)
		if err == nil {
			return bus, nil
		}
		logger.Warn("redis status backend unavailable, polling instead: %v", err)
		return polling.New(jobs, cfg.PollInterval), nil
	case domain.StatusBackendPolling:
		return polling.New(jobs, cfg.PollInterval), nil
	case domain.StatusBackendMemory, "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown status backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}
