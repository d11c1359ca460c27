package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestLogInjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)
	agentID, envID := uuid.New(), uuid.New()
	ctx := WithClientIP(context.Background(), "192.168.1.100")

	auditor.LogInjectionAttempt(ctx, agentID, envID, InjectionDetails{
		Input:       "1' OR '1'='1",
		Fingerprint: "s&sos",
		Operation:   "import_tables",
	})

	logs := recorded.All()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "security_audit", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, "s&sos", fields["fingerprint"])
	assert.Equal(t, "192.168.1.100", fields["client_ip"])
	assert.Equal(t, "critical", fields["severity"])

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
	assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
	assert.Equal(t, agentID, event.DataAgentID)
	assert.Equal(t, envID, event.EnvironmentID)
}

func TestLogCredentialAccess(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogCredentialAccess(context.Background(), uuid.New(), uuid.New(), CredentialAccessDetails{
		VaultKey: "agents/warehouse/dev",
		Found:    false,
	})

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "agents/warehouse/dev", fields["vault_key"])
	assert.Equal(t, false, fields["found"])
	assert.Equal(t, "warning", fields["severity"])
	assert.Empty(t, fields["client_ip"])
}

func TestClientIPFromContext(t *testing.T) {
	assert.Empty(t, ClientIPFromContext(context.Background()))
	assert.Equal(t, "10.0.0.1", ClientIPFromContext(WithClientIP(context.Background(), "10.0.0.1")))
}
