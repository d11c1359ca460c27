// Package audit logs security-relevant events in structured JSON for SIEM
// consumption: rejected identifiers and reads of stored credentials.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a caller-supplied identifier.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventCredentialAccess is logged whenever a secret bundle is read from the vault.
	EventCredentialAccess SecurityEventType = "credential_access"
)

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     SecurityEventType `json:"event_type"`
	DataAgentID   uuid.UUID         `json:"data_agent_id"`
	EnvironmentID uuid.UUID         `json:"environment_id,omitempty"`
	ClientIP      string            `json:"client_ip,omitempty"`
	Details       any               `json:"details"`
	Severity      string            `json:"severity"` // info, warning, critical
}

// InjectionDetails describes a rejected identifier. Input is truncated by the
// caller; it is attacker-controlled text.
type InjectionDetails struct {
	Input       string `json:"input"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint
	Operation   string `json:"operation"`
}

// CredentialAccessDetails describes a vault read. It never carries secret values.
type CredentialAccessDetails struct {
	VaultKey string `json:"vault_key"`
	Found    bool   `json:"found"`
}

type clientIPKey struct{}

// WithClientIP returns a context carrying the caller's address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// SecurityAuditor logs security events under the "security_audit" logger name.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records an identifier rejected by libinjection.
// Logged at ERROR level with "critical" severity.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, agentID, envID uuid.UUID, details InjectionDetails) {
	event := a.event(ctx, EventSQLInjectionAttempt, agentID, envID, details, "critical")

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", marshal(event)),
		zap.String("data_agent_id", agentID.String()),
		zap.String("environment_id", envID.String()),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("operation", details.Operation),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogCredentialAccess records a read of the secret bundle stored for an environment.
func (a *SecurityAuditor) LogCredentialAccess(ctx context.Context, agentID, envID uuid.UUID, details CredentialAccessDetails) {
	severity := "info"
	if !details.Found {
		severity = "warning"
	}
	event := a.event(ctx, EventCredentialAccess, agentID, envID, details, severity)

	a.logger.Info("Credential bundle read",
		zap.String("event_json", marshal(event)),
		zap.String("data_agent_id", agentID.String()),
		zap.String("environment_id", envID.String()),
		zap.String("vault_key", details.VaultKey),
		zap.Bool("found", details.Found),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", severity),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, t SecurityEventType, agentID, envID uuid.UUID, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     t,
		DataAgentID:   agentID,
		EnvironmentID: envID,
		ClientIP:      ClientIPFromContext(ctx),
		Details:       details,
		Severity:      severity,
	}
}

func marshal(event SecurityEvent) string {
	// Marshaling these known types cannot fail.
	b, _ := json.Marshal(event)
	return string(b)
}
