//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/testhelpers"
)

func setupAdapter(t *testing.T) *Adapter {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := testDB.Pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS shop;
		CREATE TABLE IF NOT EXISTS shop.customers (
			id serial PRIMARY KEY,
			email text UNIQUE NOT NULL,
			name text
		);
		COMMENT ON TABLE shop.customers IS 'People who buy things';
		CREATE TABLE IF NOT EXISTS shop.orders (
			id serial PRIMARY KEY,
			customer_id int NOT NULL REFERENCES shop.customers(id),
			total numeric(10,2) DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_orders_customer_total ON shop.orders (customer_id, total);
		INSERT INTO shop.customers (email) VALUES ('a@example.com') ON CONFLICT DO NOTHING;
	`)
	require.NoError(t, err)

	secrets := models.SecretBundle{"username": testhelpers.TestDBUser, "password": testhelpers.TestDBPassword}
	profile := models.ConnectionProfile{
		Host:     testDB.Host,
		Port:     testDB.Port,
		Database: testhelpers.TestDBName,
		TLSMode:  "disable",
	}
	cfg, err := FromProfile(profile, secrets)
	require.NoError(t, err)

	adapter, err := NewAdapter(ctx, cfg, secrets, datasource.Options{ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestAdapter_TestConnection(t *testing.T) {
	adapter := setupAdapter(t)
	require.NoError(t, adapter.TestConnection(context.Background()))
}

func TestAdapter_WrongPasswordIsAuthenticationError(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	cfg := &Config{Host: testDB.Host, Port: testDB.Port, User: testhelpers.TestDBUser, Password: "wrong-password", Database: testhelpers.TestDBName, SSLMode: "disable"}

	_, err := NewAdapter(context.Background(), cfg, models.SecretBundle{"password": "wrong-password"}, datasource.Options{ConnectTimeout: 10 * time.Second})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
	assert.NotContains(t, err.Error(), "wrong-password")
}

func TestAdapter_DiscoverTables(t *testing.T) {
	adapter := setupAdapter(t)

	tables, err := adapter.DiscoverTables(context.Background())
	require.NoError(t, err)

	byName := map[string]models.DiscoveredTable{}
	for _, tbl := range tables {
		assert.NotEqual(t, "pg_catalog", tbl.SchemaName)
		assert.NotEqual(t, "information_schema", tbl.SchemaName)
		assert.GreaterOrEqual(t, tbl.EstimatedRowCount, int64(0))
		byName[tbl.QualifiedName()] = tbl
	}
	require.Contains(t, byName, "shop.customers")
	require.Contains(t, byName, "shop.orders")
	assert.Equal(t, "People who buy things", byName["shop.customers"].Comment)
}

func TestAdapter_DiscoverColumns(t *testing.T) {
	adapter := setupAdapter(t)

	columns, err := adapter.DiscoverColumns(context.Background(), "shop", "customers")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	assert.Equal(t, "id", columns[0].ColumnName)
	assert.True(t, columns[0].IsPrimaryKey)
	assert.False(t, columns[0].IsNullable)
	assert.NotNil(t, columns[0].DefaultValue)

	assert.Equal(t, "email", columns[1].ColumnName)
	assert.True(t, columns[1].IsUnique)
	assert.Equal(t, "text", columns[1].DataType)

	assert.True(t, columns[2].IsNullable)
}

func TestAdapter_DiscoverIndexes(t *testing.T) {
	adapter := setupAdapter(t)

	indexes, err := adapter.DiscoverIndexes(context.Background(), "shop", "orders")
	require.NoError(t, err)
	require.Len(t, indexes, 1, "primary key index is not listed")

	assert.Equal(t, "idx_orders_customer_total", indexes[0].Name)
	assert.Equal(t, []string{"customer_id", "total"}, indexes[0].Columns)
	assert.False(t, indexes[0].IsUnique)

	indexes, err = adapter.DiscoverIndexes(context.Background(), "shop", "customers")
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, []string{"email"}, indexes[0].Columns)
	assert.True(t, indexes[0].IsUnique)
}

func TestAdapter_DiscoverForeignKeys(t *testing.T) {
	adapter := setupAdapter(t)

	fks, err := adapter.DiscoverForeignKeys(context.Background())
	require.NoError(t, err)

	var found bool
	for _, fk := range fks {
		if fk.SourceTable == "orders" && fk.SourceColumn == "customer_id" {
			found = true
			assert.Equal(t, "customers", fk.TargetTable)
			assert.Equal(t, "id", fk.TargetColumn)
		}
	}
	assert.True(t, found)
}

func TestAdapter_CountRows(t *testing.T) {
	adapter := setupAdapter(t)

	count, err := adapter.CountRows(context.Background(), "shop", "customers")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))
}
