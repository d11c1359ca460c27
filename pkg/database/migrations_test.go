//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/testhelpers"
)

func TestMigrations_RelationshipIdentityIndex(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	var indexDef string
	err := engineDB.DB.Pool.QueryRow(ctx, `
		SELECT indexdef FROM pg_indexes
		WHERE tablename = 'schema_relationships'
		AND indexname = 'idx_schema_relationships_identity'
	`).Scan(&indexDef)
	require.NoError(t, err)

	assert.Contains(t, indexDef, "UNIQUE")
	assert.Contains(t, indexDef, "data_agent_id, source_table_id, target_table_id, source_column, target_column")
}

func TestMigrations_RowCountNeverNegative(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	tx, err := engineDB.DB.Pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	var agentID, envID string
	require.NoError(t, tx.QueryRow(ctx, `INSERT INTO data_agents (name, engine) VALUES ('check', 'postgres') RETURNING id`).Scan(&agentID))
	require.NoError(t, tx.QueryRow(ctx, `INSERT INTO data_agent_environments (data_agent_id, name) VALUES ($1, 'dev') RETURNING id`, agentID).Scan(&envID))

	_, err = tx.Exec(ctx, `
		INSERT INTO schema_tables (data_agent_id, environment_id, schema_name, table_name, row_count)
		VALUES ($1, $2, 'public', 'negative', -1)`, agentID, envID)
	assert.Error(t, err, "row_count check constraint should reject negative counts")
}
