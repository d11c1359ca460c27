package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
)

func chatServer(t *testing.T, status int, finishReason string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id":"c1","object":"chat.completion","model":"test-model",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"relationships\":[]}"},"finish_reason":"` + finishReason + `"}],
			"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}
		}`))
	}))
}

func TestClient_GenerateResponse_JSONMode(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, http.StatusOK, "stop", &body)
	defer srv.Close()

	client, err := NewClient(&Config{Endpoint: srv.URL, Model: "test-model", JSONMode: "auto"}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), Request{
		SystemMessage: "sys", Prompt: "go", Temperature: 0.1, MaxTokens: 100, JSONMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"relationships":[]}`, result.Content)
	assert.Equal(t, 12, result.PromptTokens)
	assert.Equal(t, 5, result.CompletionTokens)
	assert.False(t, result.Truncated)

	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be sent")
	assert.Equal(t, "json_object", format["type"])
	assert.Equal(t, "test-model", body["model"])
}

func TestClient_GenerateResponse_JSONModeOff(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, http.StatusOK, "length", &body)
	defer srv.Close()

	client, err := NewClient(&Config{Endpoint: srv.URL, Model: "test-model", JSONMode: "off"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, client.SupportsJSONMode())

	result, err := client.GenerateResponse(context.Background(), Request{Prompt: "go", JSONMode: true})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	_, present := body["response_format"]
	assert.False(t, present)
}

func TestClient_GenerateResponse_AuthError(t *testing.T) {
	srv := chatServer(t, http.StatusUnauthorized, "", nil)
	defer srv.Close()

	client, err := NewClient(&Config{Endpoint: srv.URL, Model: "test-model"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), Request{Prompt: "go"})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	assert.False(t, IsRetryable(err))
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(&Config{}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewAnthropicClient(&Config{Model: "claude"}, zap.NewNop())
	assert.Error(t, err, "anthropic needs an api key")
}

func TestNewClientFromConfig(t *testing.T) {
	client, err := NewClientFromConfig(config.LLMConfig{Provider: "openai", Model: "gpt-4o", BaseURL: "http://localhost:1/v1"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", client.GetModel())
	assert.IsType(t, &GuardedClient{}, client)

	client, err = NewClientFromConfig(config.LLMConfig{Provider: "anthropic", Model: "claude-sonnet", APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, client.SupportsJSONMode())

	_, err = NewClientFromConfig(config.LLMConfig{Provider: "bard", Model: "x"}, zap.NewNop())
	require.Error(t, err)
}
