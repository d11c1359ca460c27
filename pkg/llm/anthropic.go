package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const defaultAnthropicEndpoint = "https://api.anthropic.com/v1"

// AnthropicClient calls the Anthropic Messages API. It has no JSON mode; the
// prompt has to ask for JSON explicitly.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

var _ LLMClient = (*AnthropicClient)(nil)

// NewAnthropicClient creates a Messages API client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for anthropic")
	}

	endpoint := defaultAnthropicEndpoint
	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
		opts = append(opts, anthropic.WithBaseURL(endpoint))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm"),
	}, nil
}

// GenerateResponse sends one user message with the system prompt.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, req Request) (*GenerateResponseResult, error) {
	temperature := float32(req.Temperature)

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Float64("temperature", req.Temperature),
		zap.Int("max_tokens", req.MaxTokens))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      req.SystemMessage,
		MaxTokens:   req.MaxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.Prompt),
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText {
			content.WriteString(block.GetText())
		}
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.String("stop_reason", string(resp.StopReason)),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          content.String(),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Truncated:        resp.StopReason == anthropic.MessagesStopReasonMaxTokens,
	}, nil
}

// SupportsJSONMode returns false.
func (c *AnthropicClient) SupportsJSONMode() bool {
	return false
}

func (c *AnthropicClient) GetModel() string {
	return c.model
}

func (c *AnthropicClient) GetEndpoint() string {
	return c.endpoint
}
