package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/services"
)

// mockIntrospector is a configurable SchemaIntrospector.
type mockIntrospector struct {
	testResult models.ConnectionTestResult
	tables     []models.DiscoveredTable
	err        error

	lastEngine  models.Engine
	lastProfile models.ConnectionProfile
	lastSecrets models.SecretBundle
}

var _ services.SchemaIntrospector = (*mockIntrospector)(nil)

func (m *mockIntrospector) TestConnection(ctx context.Context, engine models.Engine, profile models.ConnectionProfile, secrets models.SecretBundle) models.ConnectionTestResult {
	m.lastEngine, m.lastProfile, m.lastSecrets = engine, profile, secrets
	return m.testResult
}

func (m *mockIntrospector) DiscoverTables(ctx context.Context, agentID, envID uuid.UUID) ([]models.DiscoveredTable, error) {
	return m.tables, m.err
}

func (m *mockIntrospector) DiscoverTablesWithSecrets(ctx context.Context, agentID, envID uuid.UUID, secrets models.SecretBundle) ([]models.DiscoveredTable, error) {
	return m.tables, m.err
}

func (m *mockIntrospector) ResolveTarget(ctx context.Context, agentID, envID uuid.UUID) (*services.ConnectionTarget, error) {
	return nil, m.err
}

func (m *mockIntrospector) OpenAdapter(ctx context.Context, agentID, envID uuid.UUID) (datasource.ConnectionAdapter, *services.ConnectionTarget, error) {
	return nil, nil, m.err
}

// mockImporter is a configurable TableImportService.
type mockImporter struct {
	results   []models.ImportResult
	err       error
	lastNames []string
	deleted   []uuid.UUID
}

var _ services.TableImportService = (*mockImporter)(nil)

func (m *mockImporter) Import(ctx context.Context, agentID, envID uuid.UUID, tableNames []string) ([]models.ImportResult, error) {
	m.lastNames = tableNames
	return m.results, m.err
}

func (m *mockImporter) DeleteTable(ctx context.Context, agentID, tableID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, tableID)
	return nil
}

// mockInference is a configurable RelationshipInferenceService.
type mockInference struct {
	result *models.AnalysisResult
	err    error
}

var _ services.RelationshipInferenceService = (*mockInference)(nil)

func (m *mockInference) AnalyzeRelationships(ctx context.Context, agentID uuid.UUID) (*models.AnalysisResult, error) {
	return m.result, m.err
}

// mockFactory is an AdapterFactory that only lists engines.
type mockFactory struct {
	engines []datasource.AdapterInfo
}

var _ datasource.AdapterFactory = (*mockFactory)(nil)

func (m *mockFactory) Open(ctx context.Context, engine models.Engine, profile models.ConnectionProfile, secrets models.SecretBundle) (datasource.ConnectionAdapter, error) {
	return nil, nil
}

func (m *mockFactory) Supports(engine models.Engine) bool {
	for _, e := range m.engines {
		if e.Engine == engine {
			return true
		}
	}
	return false
}

func (m *mockFactory) ListEngines() []datasource.AdapterInfo {
	return m.engines
}
