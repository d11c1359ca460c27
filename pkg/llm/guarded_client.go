package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/retry"
)

// GuardedClient retries transient failures of the wrapped client and opens a
// circuit breaker when calls keep failing.
type GuardedClient struct {
	LLMClient
	breaker *CircuitBreaker
	retry   *retry.Config
	logger  *zap.Logger
}

var _ LLMClient = (*GuardedClient)(nil)

func NewGuardedClient(inner LLMClient, retryCfg *retry.Config, breaker *CircuitBreaker, logger *zap.Logger) *GuardedClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	return &GuardedClient{LLMClient: inner, breaker: breaker, retry: retryCfg, logger: logger}
}

// GenerateResponse calls the wrapped client under retry. Canceled calls do
// not count against the breaker.
func (g *GuardedClient) GenerateResponse(ctx context.Context, req Request) (*GenerateResponseResult, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, err
	}

	attempt := 0
	result, err := retry.DoIfRetryable(ctx, g.retry, func() (*GenerateResponseResult, error) {
		attempt++
		if attempt > 1 {
			g.logger.Warn("Retrying LLM request", zap.Int("attempt", attempt), zap.String("model", g.GetModel()))
		}
		return g.LLMClient.GenerateResponse(ctx, req)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			g.breaker.RecordFailure()
			if g.breaker.State() == CircuitOpen {
				g.logger.Error("LLM circuit breaker opened", zap.String("model", g.GetModel()), zap.Error(err))
			}
		}
		return nil, err
	}

	g.breaker.RecordSuccess()
	return result, nil
}
