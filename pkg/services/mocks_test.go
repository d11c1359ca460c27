package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockAgentRepository serves fixed agents and environments.
type mockAgentRepository struct {
	agents       map[uuid.UUID]*models.DataAgent
	environments map[uuid.UUID]*models.Environment
}

func newMockAgentRepository() *mockAgentRepository {
	return &mockAgentRepository{
		agents:       make(map[uuid.UUID]*models.DataAgent),
		environments: make(map[uuid.UUID]*models.Environment),
	}
}

func (m *mockAgentRepository) add(engine models.Engine, vaultKey string) (*models.DataAgent, *models.Environment) {
	agent := &models.DataAgent{ID: uuid.New(), Name: "warehouse", Engine: engine}
	env := &models.Environment{
		ID:          uuid.New(),
		DataAgentID: agent.ID,
		Name:        "dev",
		Profile:     models.ConnectionProfile{Host: "db.internal", Port: 5432, Database: "app"},
		VaultKey:    vaultKey,
	}
	m.agents[agent.ID] = agent
	m.environments[env.ID] = env
	return agent, env
}

func (m *mockAgentRepository) CreateDataAgent(ctx context.Context, agent *models.DataAgent) error {
	m.agents[agent.ID] = agent
	return nil
}

func (m *mockAgentRepository) GetDataAgent(ctx context.Context, id uuid.UUID) (*models.DataAgent, error) {
	if a, ok := m.agents[id]; ok {
		return a, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAgentRepository) ListDataAgents(ctx context.Context) ([]*models.DataAgent, error) {
	var out []*models.DataAgent
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAgentRepository) CreateEnvironment(ctx context.Context, env *models.Environment) error {
	m.environments[env.ID] = env
	return nil
}

func (m *mockAgentRepository) GetEnvironment(ctx context.Context, id uuid.UUID) (*models.Environment, error) {
	if e, ok := m.environments[id]; ok {
		return e, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAgentRepository) ListEnvironments(ctx context.Context, agentID uuid.UUID) ([]*models.Environment, error) {
	var out []*models.Environment
	for _, e := range m.environments {
		if e.DataAgentID == agentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// mockSecretStore is an in-memory vault.
type mockSecretStore struct {
	bundles map[string]models.SecretBundle
	getErr  error
}

func (m *mockSecretStore) Init(ctx context.Context) error { return nil }
func (m *mockSecretStore) HasProvider() bool              { return true }

func (m *mockSecretStore) Store(ctx context.Context, key string, bundle models.SecretBundle) (bool, error) {
	if m.bundles == nil {
		m.bundles = make(map[string]models.SecretBundle)
	}
	m.bundles[key] = bundle
	return true, nil
}

func (m *mockSecretStore) Get(ctx context.Context, key string) (models.SecretBundle, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.bundles[key], nil
}

func (m *mockSecretStore) Delete(ctx context.Context, key string) (bool, error) {
	_, ok := m.bundles[key]
	delete(m.bundles, key)
	return ok, nil
}

// mockSchemaRepository keeps rows in memory under the same keys as the database.
type mockSchemaRepository struct {
	mu            sync.Mutex
	tables        map[string]*models.Table
	columns       map[string]*models.Column
	relationships map[models.RelationshipKey]*models.Relationship

	upsertRelationshipErr error
	upsertTableErrFor     string

	upsertTableCalls  int
	upsertColumnCalls int
}

func newMockSchemaRepository() *mockSchemaRepository {
	return &mockSchemaRepository{
		tables:        make(map[string]*models.Table),
		columns:       make(map[string]*models.Column),
		relationships: make(map[models.RelationshipKey]*models.Relationship),
	}
}

func tableKey(t *models.Table) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.DataAgentID, t.EnvironmentID, t.SchemaName, t.TableName)
}

func (m *mockSchemaRepository) addTable(agentID, envID uuid.UUID, schema, name string, columns ...models.Column) *models.Table {
	t := &models.Table{DataAgentID: agentID, EnvironmentID: envID, SchemaName: schema, TableName: name}
	_ = m.UpsertTable(context.Background(), t)
	for i := range columns {
		c := columns[i]
		c.TableID = t.ID
		_ = m.UpsertColumn(context.Background(), &c)
	}
	m.upsertTableCalls, m.upsertColumnCalls = 0, 0
	return t
}

func (m *mockSchemaRepository) UpsertTable(ctx context.Context, table *models.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertTableCalls++
	if m.upsertTableErrFor != "" && table.TableName == m.upsertTableErrFor {
		return fmt.Errorf("insert failed")
	}
	key := tableKey(table)
	if existing, ok := m.tables[key]; ok {
		table.ID = existing.ID
	} else if table.ID == uuid.Nil {
		table.ID = uuid.New()
	}
	stored := *table
	m.tables[key] = &stored
	return nil
}

func (m *mockSchemaRepository) GetTableByID(ctx context.Context, agentID, tableID uuid.UUID) (*models.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tables {
		if t.ID == tableID && t.DataAgentID == agentID {
			return t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSchemaRepository) ListTablesByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Table
	for _, t := range m.tables {
		if t.DataAgentID == agentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockSchemaRepository) DeleteTable(ctx context.Context, agentID, tableID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.tables {
		if t.ID == tableID && t.DataAgentID == agentID {
			delete(m.tables, k)
			for ck, c := range m.columns {
				if c.TableID == tableID {
					delete(m.columns, ck)
				}
			}
			for rk := range m.relationships {
				if rk.SourceTableID == tableID || rk.TargetTableID == tableID {
					delete(m.relationships, rk)
				}
			}
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockSchemaRepository) UpsertColumn(ctx context.Context, column *models.Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertColumnCalls++
	key := column.TableID.String() + "/" + column.ColumnName
	if existing, ok := m.columns[key]; ok {
		column.ID = existing.ID
	} else {
		column.ID = uuid.New()
	}
	stored := *column
	m.columns[key] = &stored
	return nil
}

func (m *mockSchemaRepository) ListColumnsByTable(ctx context.Context, tableID uuid.UUID) ([]*models.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Column
	for _, c := range m.columns {
		if c.TableID == tableID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockSchemaRepository) UpsertRelationship(ctx context.Context, rel *models.Relationship) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertRelationshipErr != nil {
		return false, m.upsertRelationshipErr
	}
	if _, ok := m.relationships[rel.Key()]; ok {
		return false, nil
	}
	rel.ID = uuid.New()
	stored := *rel
	m.relationships[rel.Key()] = &stored
	return true, nil
}

func (m *mockSchemaRepository) FindExistingRelationship(ctx context.Context, key models.RelationshipKey) (*models.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.relationships[key], nil
}

func (m *mockSchemaRepository) ListRelationshipsByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Relationship
	for _, r := range m.relationships {
		if r.DataAgentID == agentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockSchemaRepository) tableNamed(schema, name string) *models.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tables {
		if t.SchemaName == schema && t.TableName == name {
			return t
		}
	}
	return nil
}

func (m *mockSchemaRepository) relationshipList() []*models.Relationship {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Relationship
	for _, r := range m.relationships {
		out = append(out, r)
	}
	return out
}

// mockAdapter serves a fixed catalog.
type mockAdapter struct {
	tables      []models.DiscoveredTable
	columns     map[string][]models.DiscoveredColumn
	fks         []models.ForeignKey
	counts      map[string]int64
	indexes     map[string][]models.Index
	indexErr    error
	countErr    error
	testErr     error
	discoverErr error

	countCalls atomic.Int32
	closed     *atomic.Int32
}

func (a *mockAdapter) TestConnection(ctx context.Context) error { return a.testErr }

func (a *mockAdapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	if a.discoverErr != nil {
		return nil, a.discoverErr
	}
	return append([]models.DiscoveredTable(nil), a.tables...), nil
}

func (a *mockAdapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	cols, ok := a.columns[strings.ToLower(qualify(schemaName, tableName))]
	if !ok {
		return nil, fmt.Errorf("no columns for %s.%s", schemaName, tableName)
	}
	return cols, nil
}

func (a *mockAdapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	return a.fks, nil
}

func (a *mockAdapter) SupportsForeignKeys() bool { return true }

func (a *mockAdapter) DiscoverIndexes(ctx context.Context, schemaName, tableName string) ([]models.Index, error) {
	if a.indexErr != nil {
		return nil, a.indexErr
	}
	return a.indexes[strings.ToLower(qualify(schemaName, tableName))], nil
}

func (a *mockAdapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	a.countCalls.Add(1)
	if a.countErr != nil {
		return 0, a.countErr
	}
	return a.counts[qualify(schemaName, tableName)], nil
}

func (a *mockAdapter) Close() error {
	if a.closed != nil {
		a.closed.Add(1)
	}
	return nil
}

// mockAdapterFactory hands out the same catalog on every Open and records secrets.
type mockAdapterFactory struct {
	adapter  *mockAdapter
	openFunc func(ctx context.Context) error
	supports map[models.Engine]bool

	mu          sync.Mutex
	opened      int
	lastProfile models.ConnectionProfile
	lastSecrets models.SecretBundle
	closed      atomic.Int32
}

func newMockAdapterFactory(adapter *mockAdapter, engines ...models.Engine) *mockAdapterFactory {
	f := &mockAdapterFactory{adapter: adapter, supports: make(map[models.Engine]bool)}
	for _, e := range engines {
		f.supports[e] = true
	}
	adapter.closed = &f.closed
	return f
}

func (f *mockAdapterFactory) Open(ctx context.Context, engine models.Engine, profile models.ConnectionProfile, secrets models.SecretBundle) (datasource.ConnectionAdapter, error) {
	f.mu.Lock()
	f.opened++
	f.lastProfile = profile
	f.lastSecrets = secrets
	f.mu.Unlock()

	if !f.supports[engine] {
		return nil, apperrors.NewConfigurationError("unsupported engine: %s", engine)
	}
	if f.openFunc != nil {
		if err := f.openFunc(ctx); err != nil {
			return nil, err
		}
	}
	return f.adapter, nil
}

func (f *mockAdapterFactory) Supports(engine models.Engine) bool { return f.supports[engine] }

func (f *mockAdapterFactory) ListEngines() []datasource.AdapterInfo { return nil }

func (f *mockAdapterFactory) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}
