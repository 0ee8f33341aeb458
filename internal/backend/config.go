package backend

import (
	"fmt"

	"risparmi/internal/config"
	"risparmi/internal/core"
	"risparmi/internal/llm"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	strategy := core.Strategy(appConfig.Strategy)
	if !strategy.IsValid() {
		return Config{}, fmt.Errorf("invalid adjust strategy in config: %s", appConfig.Strategy)
	}

	token := appConfig.HFToken
	if appConfig.LLMProvider == llm.ProviderOpenAI {
		token = appConfig.LLMAPIKey
	}

	return Config{
		Strategy: strategy,

		Provider:       appConfig.LLMProvider,
		Model:          appConfig.ModelName,
		Token:          token,
		BaseURL:        appConfig.LLMBaseURL,
		MaxTokens:      appConfig.LLMMaxTokens,
		Temperature:    appConfig.LLMTemperature,
		Timeout:        appConfig.LLMTimeout,
		PromptTemplate: appConfig.PromptTemplate,

		CacheTTL:        appConfig.LLMCacheTTL,
		CacheSize:       appConfig.LLMCacheSize,
		BreakerFailures: appConfig.BreakerFailures,
		BreakerTimeout:  appConfig.BreakerTimeout,
	}, nil
}

// WithStrategy returns a copy of c using strategy s.
func (c Config) WithStrategy(s core.Strategy) Config {
	c.Strategy = s
	return c
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Strategy.IsValid() {
		return fmt.Errorf("invalid adjust strategy: %s", c.Strategy)
	}

	if c.Strategy == core.StrategyLocal {
		return nil
	}

	switch c.Provider {
	case llm.ProviderHuggingFace, llm.ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.Provider)
	}
	if c.Token == "" {
		return fmt.Errorf("%w for provider %s", llm.ErrNotConfigured, c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model name is required for the model strategy")
	}
	if c.CacheTTL > 0 && c.CacheSize < 1 {
		return fmt.Errorf("cache size must be positive when caching is enabled")
	}
	return nil
}
