// Package apperrors defines the error taxonomy shared by the introspection,
// import and relationship inference paths.
package apperrors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("not found")

// Kind classifies a failure so callers can branch without string matching.
type Kind string

const (
	KindUnknown         Kind = ""
	KindConfiguration   Kind = "configuration"
	KindConnectivity    Kind = "connectivity"
	KindAuthentication  Kind = "authentication"
	KindVault           Kind = "vault"
	KindModelInvocation Kind = "model_invocation"
	KindParse           Kind = "parse"
)

// Error is a classified failure. Message and Hint must never carry secret
// material; Cause is kept for errors.Is/As but is not rendered verbatim by
// adapters (they sanitize before wrapping).
type Error struct {
	Kind    Kind
	Engine  string
	Host    string
	Port    int
	Message string
	Hint    string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Engine != "" {
		b.WriteString(e.Engine)
		if e.Host != "" {
			b.WriteString(" ")
			b.WriteString(e.Host)
			if e.Port > 0 {
				b.WriteString(":")
				b.WriteString(strconv.Itoa(e.Port))
			}
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString(" (")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindVault})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// KindOf returns the classification of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func newKind(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func NewConfigurationError(format string, args ...any) *Error {
	return newKind(KindConfiguration, nil, format, args...)
}

func NewVaultError(cause error, format string, args ...any) *Error {
	return newKind(KindVault, cause, format, args...)
}

func NewModelInvocationError(cause error, format string, args ...any) *Error {
	return newKind(KindModelInvocation, cause, format, args...)
}

func NewParseError(cause error, format string, args ...any) *Error {
	return newKind(KindParse, cause, format, args...)
}

// NewConnectivityError describes a failure to reach host:port.
func NewConnectivityError(engine, host string, port int, cause error, message, hint string) *Error {
	return &Error{Kind: KindConnectivity, Engine: engine, Host: host, Port: port, Message: message, Hint: hint, Cause: cause}
}

// NewAuthenticationError describes rejected credentials at host:port.
func NewAuthenticationError(engine, host string, port int, cause error, message, hint string) *Error {
	return &Error{Kind: KindAuthentication, Engine: engine, Host: host, Port: port, Message: message, Hint: hint, Cause: cause}
}
