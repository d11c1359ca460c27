package llm

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/retry"
)

// NewClientFromConfig builds the configured provider's client wrapped in a GuardedClient.
func NewClientFromConfig(cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint: cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		JSONMode: cfg.JSONMode,
	}

	var (
		client LLMClient
		err    error
	)
	switch cfg.Provider {
	case "openai", "":
		client, err = NewClient(clientCfg, logger)
	case "anthropic":
		client, err = NewAnthropicClient(clientCfg, logger)
	default:
		return nil, apperrors.NewConfigurationError("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, apperrors.NewConfigurationError("llm %s: %v", cfg.Provider, err)
	}

	return NewGuardedClient(client, retry.DefaultConfig(), NewCircuitBreaker(DefaultCircuitBreakerConfig()), logger.Named("llm")), nil
}
