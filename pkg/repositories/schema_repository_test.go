//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/testhelpers"
)

// schemaTestContext holds all dependencies for schema repository integration tests.
type schemaTestContext struct {
	t      *testing.T
	repo   SchemaRepository
	agents AgentRepository
	agent  *models.DataAgent
	env    *models.Environment
}

// setupSchemaTest creates a fresh data agent and environment so tests never share rows.
func setupSchemaTest(t *testing.T) *schemaTestContext {
	t.Helper()

	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	agents := NewAgentRepository(engineDB.DB)
	agent := &models.DataAgent{Name: "shop-" + uuid.NewString()[:8], Engine: models.EnginePostgres}
	require.NoError(t, agents.CreateDataAgent(ctx, agent))

	env := &models.Environment{
		DataAgentID: agent.ID,
		Name:        "dev",
		Profile:     models.ConnectionProfile{Host: "localhost", Port: 5432, Database: "shop"},
		VaultKey:    "shop-dev",
	}
	require.NoError(t, agents.CreateEnvironment(ctx, env))

	return &schemaTestContext{
		t:      t,
		repo:   NewSchemaRepository(engineDB.DB),
		agents: agents,
		agent:  agent,
		env:    env,
	}
}

func (tc *schemaTestContext) createTable(name string, rowCount int64) *models.Table {
	tc.t.Helper()
	table := &models.Table{
		DataAgentID:   tc.agent.ID,
		EnvironmentID: tc.env.ID,
		SchemaName:    "public",
		TableName:     name,
		RowCount:      rowCount,
	}
	require.NoError(tc.t, tc.repo.UpsertTable(context.Background(), table))
	return table
}

func TestAgentRepository_GetEnvironmentRoundTrip(t *testing.T) {
	tc := setupSchemaTest(t)

	got, err := tc.agents.GetEnvironment(context.Background(), tc.env.ID)
	require.NoError(t, err)
	assert.Equal(t, tc.agent.ID, got.DataAgentID)
	assert.Equal(t, "shop-dev", got.VaultKey)
	assert.Equal(t, "localhost", got.Profile.Host)
	assert.Equal(t, 5432, got.Profile.Port)
}

func TestAgentRepository_NotFound(t *testing.T) {
	tc := setupSchemaTest(t)

	_, err := tc.agents.GetEnvironment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = tc.agents.GetDataAgent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSchemaRepository_UpsertTableIsIdempotent(t *testing.T) {
	tc := setupSchemaTest(t)
	ctx := context.Background()

	first := tc.createTable("customers", 10)
	second := tc.createTable("customers", 12)

	assert.Equal(t, first.ID, second.ID, "re-import must update the existing row")

	tables, err := tc.repo.ListTablesByAgent(ctx, tc.agent.ID)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, int64(12), tables[0].RowCount)
}

func TestSchemaRepository_UpsertColumnIsIdempotent(t *testing.T) {
	tc := setupSchemaTest(t)
	ctx := context.Background()
	table := tc.createTable("customers", 0)

	for i := 0; i < 2; i++ {
		col := &models.Column{TableID: table.ID, ColumnName: "id", DataType: "integer", IsPrimaryKey: true, OrdinalPosition: 1}
		require.NoError(t, tc.repo.UpsertColumn(ctx, col))
	}

	columns, err := tc.repo.ListColumnsByTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.True(t, columns[0].IsPrimaryKey)
}

func TestSchemaRepository_RelationshipUniqueness(t *testing.T) {
	tc := setupSchemaTest(t)
	ctx := context.Background()
	customers := tc.createTable("customers", 0)
	orders := tc.createTable("orders", 0)

	newRel := func() *models.Relationship {
		return &models.Relationship{
			DataAgentID:   tc.agent.ID,
			EnvironmentID: tc.env.ID,
			SourceTableID: orders.ID,
			SourceColumn:  "customer_id",
			TargetTableID: customers.ID,
			TargetColumn:  "id",
			Kind:          models.CardinalityOneToMany,
			Confidence:    0.95,
		}
	}

	created, err := tc.repo.UpsertRelationship(ctx, newRel())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = tc.repo.UpsertRelationship(ctx, newRel())
	require.NoError(t, err)
	assert.False(t, created)

	rels, err := tc.repo.ListRelationshipsByAgent(ctx, tc.agent.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.False(t, rels[0].IsVerified)
	assert.Equal(t, models.RelationshipSourceInferred, rels[0].Source)

	existing, err := tc.repo.FindExistingRelationship(ctx, rels[0].Key())
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, rels[0].ID, existing.ID)

	missing := rels[0].Key()
	missing.TargetColumn = "email"
	existing, err = tc.repo.FindExistingRelationship(ctx, missing)
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestSchemaRepository_DeleteTableCascades(t *testing.T) {
	tc := setupSchemaTest(t)
	ctx := context.Background()
	customers := tc.createTable("customers", 0)
	orders := tc.createTable("orders", 0)

	require.NoError(t, tc.repo.UpsertColumn(ctx, &models.Column{TableID: orders.ID, ColumnName: "customer_id", DataType: "integer"}))
	_, err := tc.repo.UpsertRelationship(ctx, &models.Relationship{
		DataAgentID: tc.agent.ID, EnvironmentID: tc.env.ID,
		SourceTableID: orders.ID, SourceColumn: "customer_id",
		TargetTableID: customers.ID, TargetColumn: "id",
		Kind: models.CardinalityOneToMany, Confidence: 1, Source: models.RelationshipSourceForeignKey, IsVerified: true,
	})
	require.NoError(t, err)

	require.NoError(t, tc.repo.DeleteTable(ctx, tc.agent.ID, orders.ID))

	columns, err := tc.repo.ListColumnsByTable(ctx, orders.ID)
	require.NoError(t, err)
	assert.Empty(t, columns)

	rels, err := tc.repo.ListRelationshipsByAgent(ctx, tc.agent.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)

	_, err = tc.repo.GetTableByID(ctx, tc.agent.ID, orders.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, tc.repo.DeleteTable(ctx, tc.agent.ID, orders.ID), apperrors.ErrNotFound)
}
