package backend

import (
	"context"
	"fmt"
	"log/slog"

	"risparmi/internal/adjust"
	"risparmi/internal/cache"
	"risparmi/internal/core"
	"risparmi/internal/llm"
	applog "risparmi/internal/log"
	"risparmi/internal/metrics"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *slog.Logger
	metrics *metrics.Registry
	caches  *cache.Manager
}

// NewFactory creates a new planner factory. metrics and caches may be nil.
func NewFactory(logger *slog.Logger, m *metrics.Registry, caches *cache.Manager) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:  logger.With(applog.FieldComponent, applog.ComponentBackend),
		metrics: m,
		caches:  caches,
	}
}

// CreatePlanner implements Factory.CreatePlanner
func (f *DefaultFactory) CreatePlanner(ctx context.Context, config Config) (*PlannerResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Strategy {
	case core.StrategyLocal:
		f.logger.Info("Initialized local planner")
		return &PlannerResult{Planner: adjust.LocalCalculator{}, Describe: "local"}, nil
	case core.StrategyModel:
		return f.createModelPlanner(config)
	default:
		return nil, fmt.Errorf("unsupported adjust strategy: %s", config.Strategy)
	}
}

func (f *DefaultFactory) createModelPlanner(config Config) (*PlannerResult, error) {
	prompt, err := adjust.NewPrompt(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	completer := f.createClient(config)
	if f.metrics != nil {
		completer = llm.NewObserved(completer, config.Provider, f.metrics)
	}
	completer = llm.NewBreaker(completer, llm.BreakerSettings{
		Name:     config.Provider,
		Failures: uint32(config.BreakerFailures),
		Timeout:  config.BreakerTimeout,
	}, f.logger)

	if config.CacheTTL > 0 {
		replies := cache.NewLRUCache[string](config.CacheSize, config.CacheTTL)
		if f.caches != nil {
			f.caches.Register(replies)
		}
		if f.metrics != nil {
			f.metrics.RegisterCache("completion", replies.Stats)
		}
		completer = llm.NewCachedCompleter(completer, config.Model, replies)
	}

	f.logger.Info("Initialized model planner",
		applog.FieldProvider, config.Provider,
		applog.FieldModel, config.Model,
		"cache_ttl", config.CacheTTL,
		"breaker_failures", config.BreakerFailures)

	return &PlannerResult{
		Planner:  adjust.NewModelAdjuster(completer, prompt, config.Provider, config.Model),
		Describe: config.Provider + "/" + config.Model,
	}, nil
}

func (f *DefaultFactory) createClient(config Config) llm.Completer {
	params := llm.Params{
		Model:       config.Model,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
	}

	switch config.Provider {
	case llm.ProviderOpenAI:
		c := llm.NewChatClient(config.Token, params)
		if config.BaseURL != "" {
			c = c.WithBaseURL(config.BaseURL)
		}
		if config.Timeout > 0 {
			c = c.WithTimeout(config.Timeout)
		}
		return c
	default:
		c := llm.NewHuggingFaceClient(config.Token, params)
		if config.BaseURL != "" {
			c = c.WithBaseURL(config.BaseURL)
		}
		if config.Timeout > 0 {
			c = c.WithTimeout(config.Timeout)
		}
		return c
	}
}
