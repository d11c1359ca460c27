package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/audit"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/logging"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/repositories"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/vault"
)

// SchemaIntrospector tests connections and discovers tables of data agent environments.
// It persists nothing.
type SchemaIntrospector interface {
	// TestConnection never returns an error: failures are reported in the result
	// with a classified ErrorKind.
	TestConnection(ctx context.Context, engine models.Engine, profile models.ConnectionProfile, secrets models.SecretBundle) models.ConnectionTestResult

	// DiscoverTables lists the tables of an environment using the credentials
	// stored under its vault key.
	DiscoverTables(ctx context.Context, agentID, envID uuid.UUID) ([]models.DiscoveredTable, error)

	// DiscoverTablesWithSecrets is DiscoverTables with caller-supplied credentials,
	// for environments that have not stored theirs yet.
	DiscoverTablesWithSecrets(ctx context.Context, agentID, envID uuid.UUID, secrets models.SecretBundle) ([]models.DiscoveredTable, error)

	// ResolveTarget loads the agent, environment and credentials needed to open adapters.
	ResolveTarget(ctx context.Context, agentID, envID uuid.UUID) (*ConnectionTarget, error)

	// OpenAdapter resolves the environment and opens one adapter. Callers must Close it.
	OpenAdapter(ctx context.Context, agentID, envID uuid.UUID) (datasource.ConnectionAdapter, *ConnectionTarget, error)
}

// ConnectionTarget is a resolved environment that adapters can be opened against.
// It holds the secret bundle, so it must not be logged or serialized.
type ConnectionTarget struct {
	Agent       *models.DataAgent
	Environment *models.Environment
	Profile     models.ConnectionProfile

	secrets models.SecretBundle
	factory datasource.AdapterFactory
}

// Open returns a new adapter with its own private connection.
func (t *ConnectionTarget) Open(ctx context.Context) (datasource.ConnectionAdapter, error) {
	return t.factory.Open(ctx, t.Agent.Engine, t.Profile, t.secrets)
}

type schemaIntrospector struct {
	agents         repositories.AgentRepository
	vault          vault.SecretStore
	factory        datasource.AdapterFactory
	auditor        *audit.SecurityAuditor
	connectTimeout time.Duration
	logger         *zap.Logger
}

// NewSchemaIntrospector creates a SchemaIntrospector. connectTimeout bounds a whole
// connection test; profiles may override it.
func NewSchemaIntrospector(
	agents repositories.AgentRepository,
	secrets vault.SecretStore,
	factory datasource.AdapterFactory,
	auditor *audit.SecurityAuditor,
	connectTimeout time.Duration,
	logger *zap.Logger,
) SchemaIntrospector {
	return &schemaIntrospector{
		agents:         agents,
		vault:          secrets,
		factory:        factory,
		auditor:        auditor,
		connectTimeout: connectTimeout,
		logger:         logger.Named("introspection"),
	}
}

var _ SchemaIntrospector = (*schemaIntrospector)(nil)

func (s *schemaIntrospector) TestConnection(ctx context.Context, engine models.Engine, profile models.ConnectionProfile, secrets models.SecretBundle) models.ConnectionTestResult {
	if !s.factory.Supports(engine) {
		return failedTest(apperrors.NewConfigurationError("unsupported engine: %s", engine), secrets)
	}

	profile.Host = config.ResolveHostForDocker(profile.Host)
	timeout := datasource.Options{ConnectTimeout: s.connectTimeout}.ForProfile(profile).ConnectTimeout

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	adapter, err := s.factory.Open(ctx, engine, profile, secrets)
	if err != nil {
		s.logTestFailure(engine, profile, start, err, secrets)
		return failedTest(err, secrets)
	}
	defer s.closeAdapter(adapter)

	if err := adapter.TestConnection(ctx); err != nil {
		s.logTestFailure(engine, profile, start, err, secrets)
		return failedTest(err, secrets)
	}

	s.logger.Info("Connection test succeeded",
		zap.String("engine", string(engine)),
		zap.String("host", profile.Host),
		zap.Duration("elapsed", time.Since(start)))

	return models.ConnectionTestResult{Success: true, Message: "Connection successful"}
}

func (s *schemaIntrospector) logTestFailure(engine models.Engine, profile models.ConnectionProfile, start time.Time, err error, secrets models.SecretBundle) {
	s.logger.Warn("Connection test failed",
		zap.String("engine", string(engine)),
		zap.String("host", profile.Host),
		zap.Int("port", profile.Port),
		zap.String("error_kind", string(errorKind(err))),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("error", logging.RedactValues(logging.SanitizeError(err), secrets.Values()...)))
}

// failedTest renders err for the caller. Unclassified errors are reported as
// connectivity failures since they come from the network path.
func failedTest(err error, secrets models.SecretBundle) models.ConnectionTestResult {
	return models.ConnectionTestResult{
		Success:   false,
		Error:     logging.RedactValues(err.Error(), secrets.Values()...),
		ErrorKind: string(errorKind(err)),
	}
}

func errorKind(err error) apperrors.Kind {
	if kind := apperrors.KindOf(err); kind != apperrors.KindUnknown {
		return kind
	}
	return apperrors.KindConnectivity
}

func (s *schemaIntrospector) DiscoverTables(ctx context.Context, agentID, envID uuid.UUID) ([]models.DiscoveredTable, error) {
	return s.DiscoverTablesWithSecrets(ctx, agentID, envID, nil)
}

func (s *schemaIntrospector) DiscoverTablesWithSecrets(ctx context.Context, agentID, envID uuid.UUID, secrets models.SecretBundle) ([]models.DiscoveredTable, error) {
	target, err := s.resolve(ctx, agentID, envID, secrets)
	if err != nil {
		return nil, err
	}

	adapter, err := target.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.closeAdapter(adapter)

	tables, err := adapter.DiscoverTables(ctx)
	if err != nil {
		return nil, err
	}
	tables = datasource.NormalizeTables(tables, nil)

	s.logger.Info("Discovered tables",
		zap.String("data_agent_id", agentID.String()),
		zap.String("environment_id", envID.String()),
		zap.String("engine", string(target.Agent.Engine)),
		zap.Int("table_count", len(tables)))

	return tables, nil
}

func (s *schemaIntrospector) ResolveTarget(ctx context.Context, agentID, envID uuid.UUID) (*ConnectionTarget, error) {
	return s.resolve(ctx, agentID, envID, nil)
}

func (s *schemaIntrospector) OpenAdapter(ctx context.Context, agentID, envID uuid.UUID) (datasource.ConnectionAdapter, *ConnectionTarget, error) {
	target, err := s.resolve(ctx, agentID, envID, nil)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := target.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return adapter, target, nil
}

// resolve loads agent and environment and picks the credentials: explicit ones
// when given, otherwise the bundle stored under the environment's vault key.
func (s *schemaIntrospector) resolve(ctx context.Context, agentID, envID uuid.UUID, explicit models.SecretBundle) (*ConnectionTarget, error) {
	agent, err := s.agents.GetDataAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("data agent %s: %w", agentID, err)
	}
	env, err := s.agents.GetEnvironment(ctx, envID)
	if err != nil {
		return nil, fmt.Errorf("environment %s: %w", envID, err)
	}
	if env.DataAgentID != agent.ID {
		return nil, fmt.Errorf("environment %s of data agent %s: %w", envID, agentID, apperrors.ErrNotFound)
	}

	if !s.factory.Supports(agent.Engine) {
		return nil, apperrors.NewConfigurationError("unsupported engine: %s", agent.Engine)
	}

	secrets := explicit
	if secrets.IsEmpty() {
		if env.VaultKey == "" {
			return nil, apperrors.NewConfigurationError("environment %s has no vault key and no credentials were supplied", env.Name)
		}
		secrets, err = s.vault.Get(ctx, env.VaultKey)
		if err != nil {
			return nil, err
		}
		s.auditor.LogCredentialAccess(ctx, agent.ID, env.ID, audit.CredentialAccessDetails{
			VaultKey: env.VaultKey,
			Found:    !secrets.IsEmpty(),
		})
		if secrets.IsEmpty() {
			return nil, apperrors.NewConfigurationError("no credentials stored under vault key %q", env.VaultKey)
		}
	}

	profile := env.Profile
	profile.Host = config.ResolveHostForDocker(profile.Host)

	return &ConnectionTarget{
		Agent:       agent,
		Environment: env,
		Profile:     profile,
		secrets:     secrets,
		factory:     s.factory,
	}, nil
}

func (s *schemaIntrospector) closeAdapter(adapter datasource.ConnectionAdapter) {
	if err := adapter.Close(); err != nil {
		s.logger.Warn("Failed to close adapter", zap.String("error", logging.SanitizeError(err)))
	}
}
