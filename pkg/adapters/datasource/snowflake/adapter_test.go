package snowflake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

func newMockAdapter(t *testing.T, schema string) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cfg := &Config{Account: "xy12345", User: "LOADER", Password: "snow-secret", Database: "analytics", Schema: schema, Warehouse: "COMPUTE_WH"}
	sdb, err := datasource.NewSQLDB(context.Background(), db, endpoint(cfg), models.SecretBundle{"password": cfg.Password}, datasource.Options{}, classify)
	require.NoError(t, err)

	t.Cleanup(func() { sdb.Close() })
	return &Adapter{config: cfg, db: sdb}, mock
}

func TestFromProfile_AccountFromHost(t *testing.T) {
	profile := models.ConnectionProfile{
		Host:     "XY12345.snowflakecomputing.com",
		Database: "analytics",
		Options:  map[string]any{"warehouse": "COMPUTE_WH", "role": "READER"},
	}
	cfg, err := FromProfile(profile, models.SecretBundle{"username": "loader", "password": "pw"})
	require.NoError(t, err)
	assert.Equal(t, "xy12345", cfg.Account)
	assert.Equal(t, "COMPUTE_WH", cfg.Warehouse)
	assert.Equal(t, "READER", cfg.Role)

	dc := cfg.driverConfig(5*time.Second, 30*time.Second)
	assert.Equal(t, 5*time.Second, dc.LoginTimeout)
	assert.Equal(t, gosnowflake.AuthTypeSnowflake, dc.Authenticator)
}

func TestFromProfile_MissingPassword(t *testing.T) {
	_, err := FromProfile(models.ConnectionProfile{Database: "analytics", Options: map[string]any{"account": "a"}},
		models.SecretBundle{"username": "loader"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "password")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, apperrors.KindAuthentication, classify(&gosnowflake.SnowflakeError{Number: 390100}))
	assert.Equal(t, apperrors.KindConfiguration, classify(&gosnowflake.SnowflakeError{Number: 2003}))
	assert.Equal(t, apperrors.KindUnknown, classify(errors.New("other")))
}

func TestDiscoverTables(t *testing.T) {
	adapter, mock := newMockAdapter(t, "public")

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME", "ROW_COUNT", "COMMENT"}).
			AddRow("PUBLIC", "ORDERS", int64(42), "orders fact").
			AddRow("PUBLIC", "EXT_EVENTS", nil, nil))

	tables, err := adapter.DiscoverTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "EXT_EVENTS", tables[0].TableName)
	assert.False(t, tables[0].RowCountKnown)
	assert.Equal(t, int64(42), tables[1].EstimatedRowCount)
	assert.Equal(t, "orders fact", tables[1].Comment)
}

func TestDiscoverColumns_MarksPrimaryKey(t *testing.T) {
	adapter, mock := newMockAdapter(t, "")

	mock.ExpectQuery(`SHOW PRIMARY KEYS IN TABLE "ANALYTICS"\."PUBLIC"\."ORDERS"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_on", "database_name", "schema_name", "table_name", "column_name", "key_sequence", "constraint_name"}).
			AddRow("2024-01-01", "ANALYTICS", "PUBLIC", "ORDERS", "ID", "1", "PK_ORDERS"))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("PUBLIC", "ORDERS").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "ORDINAL_POSITION", "COLUMN_DEFAULT", "COMMENT"}).
			AddRow("ID", "NUMBER", "NO", int64(1), nil, nil).
			AddRow("CUSTOMER_ID", "NUMBER", "YES", int64(2), nil, "buyer"))

	columns, err := adapter.DiscoverColumns(context.Background(), "PUBLIC", "ORDERS")
	require.NoError(t, err)
	require.Len(t, columns, 2)

	assert.True(t, columns[0].IsPrimaryKey)
	assert.False(t, columns[0].IsNullable)
	assert.False(t, columns[1].IsPrimaryKey)
	assert.True(t, columns[1].IsNullable)
	assert.Equal(t, "buyer", columns[1].Comment)
}

func TestDiscoverForeignKeys(t *testing.T) {
	adapter, mock := newMockAdapter(t, "")

	cols := []string{"created_on", "pk_database_name", "pk_schema_name", "pk_table_name", "pk_column_name",
		"fk_database_name", "fk_schema_name", "fk_table_name", "fk_column_name", "key_sequence", "fk_name"}
	mock.ExpectQuery(`SHOW IMPORTED KEYS IN DATABASE "ANALYTICS"`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t", "ANALYTICS", "PUBLIC", "CUSTOMERS", "ID", "ANALYTICS", "PUBLIC", "ORDERS", "CUSTOMER_ID", "1", "FK_ORDERS_CUSTOMER"))

	fks, err := adapter.DiscoverForeignKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, models.ForeignKey{
		ConstraintName: "FK_ORDERS_CUSTOMER",
		SourceSchema:   "PUBLIC", SourceTable: "ORDERS", SourceColumn: "CUSTOMER_ID",
		TargetSchema: "PUBLIC", TargetTable: "CUSTOMERS", TargetColumn: "ID",
	}, fks[0])
}

func TestCountRows(t *testing.T) {
	adapter, mock := newMockAdapter(t, "")

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "ANALYTICS"\."PUBLIC"\."ORDERS"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := adapter.CountRows(context.Background(), "PUBLIC", "ORDERS")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered(models.EngineSnowflake))
}
