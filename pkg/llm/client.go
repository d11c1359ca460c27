package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client provides access to OpenAI-compatible LLM endpoints.
type Client struct {
	client   *openai.Client
	endpoint string
	model    string
	jsonMode bool
	logger   *zap.Logger
}

var _ LLMClient = (*Client)(nil)

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint string // Base URL, e.g., "https://api.openai.com/v1"
	Model    string // Model name, e.g., "gpt-4o"
	APIKey   string // Optional for local endpoints
	// JSONMode is auto, on or off. auto assumes an OpenAI-compatible endpoint
	// supports response_format json_object.
	JSONMode string
}

// NewClient creates a new OpenAI-compatible LLM client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: clientConfig.BaseURL,
		model:    cfg.Model,
		jsonMode: cfg.JSONMode != "off",
		logger:   logger.Named("llm"),
	}, nil
}

// GenerateResponse runs one chat completion.
func (c *Client) GenerateResponse(ctx context.Context, req Request) (*GenerateResponseResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode && c.jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Float64("temperature", req.Temperature),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Bool("json_mode", chatReq.ResponseFormat != nil))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeUnknown, "no choices in response", false, nil)
	}

	choice := resp.Choices[0]

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Truncated:        choice.FinishReason == openai.FinishReasonLength,
	}, nil
}

// SupportsJSONMode reports whether response_format json_object is sent.
func (c *Client) SupportsJSONMode() bool {
	return c.jsonMode
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}
