package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
)

// ErrorType indicates which part of the model configuration caused an error.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
	Model      string
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{Type: errType, Message: message, Retryable: retryable, Cause: cause}
}

// ClassifyError categorizes a provider error. Typed SDK errors are read by
// status code; anything else falls back to message matching.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if status := statusCode(err); status > 0 {
		e := classifyStatus(status, err)
		e.StatusCode = status
		return e
	}

	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "invalid x-api-key"):
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return NewError(ErrorTypeModel, "model not found", false, err)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset"):
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	case strings.Contains(lower, "context canceled"):
		return NewError(ErrorTypeEndpoint, "request canceled", false, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "overloaded"):
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case strings.Contains(lower, "cuda error") || strings.Contains(lower, "out of memory"):
		return NewError(ErrorTypeEndpoint, "GPU error", true, err)
	}
	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var antErr *anthropic.APIError
	if errors.As(err, &antErr) {
		switch {
		case antErr.IsAuthenticationErr(), antErr.IsPermissionErr():
			return http.StatusUnauthorized
		case antErr.IsNotFoundErr():
			return http.StatusNotFound
		case antErr.IsRateLimitErr():
			return http.StatusTooManyRequests
		case antErr.IsOverloadedErr():
			return 529
		case antErr.IsApiErr():
			return http.StatusInternalServerError
		case antErr.IsInvalidRequestErr():
			return http.StatusBadRequest
		}
	}
	var antReq *anthropic.RequestError
	if errors.As(err, &antReq) {
		return antReq.StatusCode
	}
	return 0
}

func classifyStatus(status int, err error) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == http.StatusNotFound:
		return NewError(ErrorTypeModel, "model or endpoint not found", false, err)
	case status == http.StatusTooManyRequests:
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case status >= 500:
		return NewError(ErrorTypeEndpoint, "server error", true, err)
	}
	return NewError(ErrorTypeUnknown, "request rejected", false, err)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// AsInvocationError wraps err as a model_invocation application error.
func AsInvocationError(err error) error {
	if err == nil {
		return nil
	}
	e := ClassifyError(err)
	return apperrors.NewModelInvocationError(e, "model call failed: %s", e.Message)
}
