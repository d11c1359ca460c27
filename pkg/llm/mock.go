package llm

import (
	"context"
	"sync"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set the function fields to control behavior in tests.
type MockLLMClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns an empty result and nil error.
	GenerateResponseFunc func(ctx context.Context, req Request) (*GenerateResponseResult, error)

	// JSONMode is returned by SupportsJSONMode.
	JSONMode bool

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	mu       sync.Mutex
	requests []Request
}

var _ LLMClient = (*MockLLMClient)(nil)

func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{Model: "mock-model"}
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, req Request) (*GenerateResponseResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, req)
	}
	return &GenerateResponseResult{}, nil
}

// Requests returns every request received so far.
func (m *MockLLMClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockLLMClient) SupportsJSONMode() bool {
	return m.JSONMode
}

func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

func (m *MockLLMClient) GetEndpoint() string {
	return "http://mock-endpoint"
}
