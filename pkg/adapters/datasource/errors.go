package datasource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/logging"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Endpoint identifies the server an adapter talks to, for error messages.
// It never carries credentials.
type Endpoint struct {
	Engine  models.Engine
	Host    string
	Port    int
	Timeout time.Duration
}

const (
	hintAuth        = "verify the credentials stored for this environment"
	hintRefused     = "check that the host and port are correct and the server accepts connections"
	hintDNS         = "check the host name"
	hintTimeout     = "check network access and firewall rules"
	hintTLS         = "check the TLS/SSL mode and server certificate"
	hintDatabase    = "check the database, schema or catalog name"
	hintPermissions = "grant the connecting user read access to the system catalog"
)

var authMarkers = []string{
	"authentication failed",
	"password authentication",
	"access denied",
	"login failed",
	"invalid username or password",
	"incorrect username or password",
	"invalid credentials",
	"invalid_grant",
	"unauthenticated",
	"unauthorized",
	"error 401",
	"error 403",
	"status code 401",
	"status code 403",
	"invalid token",
	"invalid access token",
}

var refusedMarkers = []string{"connection refused", "connection reset", "no route to host", "network is unreachable", "broken pipe", "eof"}

var tlsMarkers = []string{"tls", "ssl", "certificate", "x509"}

var databaseMarkers = []string{"does not exist", "unknown database", "cannot open database", "not found", "unknown catalog"}

// Classify converts a driver error into a classified *apperrors.Error. kind may be
// supplied by the adapter from driver error codes; KindUnknown falls back to
// message heuristics. The message is sanitized and every secret value is redacted.
// An err that is already classified is returned unchanged.
func (e Endpoint) Classify(err error, kind apperrors.Kind, secrets models.SecretBundle) error {
	if err == nil {
		return nil
	}
	var classified *apperrors.Error
	if errors.As(err, &classified) {
		return err
	}

	message := logging.RedactValues(logging.SanitizeError(err), secrets.Values()...)
	lower := strings.ToLower(message)
	hint := ""

	if kind == apperrors.KindUnknown {
		kind, hint = e.heuristic(err, lower)
	} else {
		hint = defaultHint(kind)
	}

	if kind == apperrors.KindConnectivity && isTimeout(err) {
		message = e.timeoutMessage()
		hint = hintTimeout
	}

	return &apperrors.Error{
		Kind:    kind,
		Engine:  string(e.Engine),
		Host:    e.Host,
		Port:    e.Port,
		Message: message,
		Hint:    hint,
		Cause:   err,
	}
}

func (e Endpoint) timeoutMessage() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("timed out after %s", e.Timeout)
	}
	return "timed out"
}

func (e Endpoint) heuristic(err error, lower string) (apperrors.Kind, string) {
	if isTimeout(err) {
		return apperrors.KindConnectivity, hintTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || strings.Contains(lower, "no such host") {
		return apperrors.KindConnectivity, hintDNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return apperrors.KindConnectivity, hintRefused
	}
	if containsAny(lower, authMarkers) {
		return apperrors.KindAuthentication, hintAuth
	}
	if containsAny(lower, tlsMarkers) {
		return apperrors.KindConfiguration, hintTLS
	}
	if containsAny(lower, refusedMarkers) {
		return apperrors.KindConnectivity, hintRefused
	}
	if containsAny(lower, databaseMarkers) {
		return apperrors.KindConfiguration, hintDatabase
	}
	if strings.Contains(lower, "permission denied") {
		return apperrors.KindAuthentication, hintPermissions
	}
	// Anything else is treated as a protocol-level failure talking to the server.
	return apperrors.KindConnectivity, ""
}

func defaultHint(kind apperrors.Kind) string {
	switch kind {
	case apperrors.KindAuthentication:
		return hintAuth
	case apperrors.KindConnectivity:
		return hintRefused
	case apperrors.KindConfiguration:
		return hintDatabase
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "i/o timeout")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// MissingField reports a required connection setting that was not supplied.
func MissingField(engine models.Engine, field string) error {
	return apperrors.NewConfigurationError("%s: %s is required", engine, field)
}
