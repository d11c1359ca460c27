// Package llm provides chat completion clients for OpenAI-compatible endpoints
// and Anthropic, behind one interface.
package llm

import (
	"context"
)

// Request is a single chat completion request.
type Request struct {
	SystemMessage string
	Prompt        string
	Temperature   float64
	MaxTokens     int
	// JSONMode asks the provider to constrain output to a JSON object. Ignored by
	// clients whose SupportsJSONMode returns false.
	JSONMode bool
}

// GenerateResponseResult is a completion with its token usage.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// Truncated is set when the provider stopped because the token budget ran out.
	Truncated bool
}

// LLMClient defines the interface for LLM operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse runs one chat completion.
	GenerateResponse(ctx context.Context, req Request) (*GenerateResponseResult, error)

	// SupportsJSONMode reports whether Request.JSONMode is honored.
	SupportsJSONMode() bool

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}
