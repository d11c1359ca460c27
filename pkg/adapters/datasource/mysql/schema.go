package mysql

import (
	"context"
	"database/sql"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

var systemSchemas = datasource.SchemaDenyList{"mysql", "information_schema", "performance_schema", "sys"}

// SupportsForeignKeys returns true; InnoDB enforces FK constraints.
func (a *Adapter) SupportsForeignKeys() bool {
	return true
}

// DiscoverTables returns base tables of the configured database. TABLE_ROWS is
// an estimate for InnoDB and NULL for some engines and views.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	query := `
		SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_ROWS, COALESCE(TABLE_COMMENT, '')
		FROM information_schema.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		  AND TABLE_SCHEMA = ?
		  AND TABLE_SCHEMA NOT IN (` + systemSchemas.Placeholders() + `)
		ORDER BY TABLE_SCHEMA, TABLE_NAME`

	var tables []models.DiscoveredTable
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			t        models.DiscoveredTable
			estimate sql.NullInt64
		)
		if err := rows.Scan(&t.SchemaName, &t.TableName, &estimate, &t.Comment); err != nil {
			return err
		}
		var est *int64
		if estimate.Valid {
			est = &estimate.Int64
		}
		t.EstimatedRowCount, t.RowCountKnown = datasource.RowEstimate(est)
		tables = append(tables, t)
		return nil
	}, query, a.config.Database)
	if err != nil {
		return nil, err
	}
	return datasource.NormalizeTables(tables, systemSchemas), nil
}

// DiscoverColumns returns columns for a specific table in ordinal order.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	if schemaName == "" {
		schemaName = a.config.Database
	}

	const query = `
		SELECT
			COLUMN_NAME,
			COLUMN_TYPE,
			IS_NULLABLE = 'YES',
			COLUMN_KEY = 'PRI',
			COLUMN_KEY = 'UNI',
			ORDINAL_POSITION,
			COLUMN_DEFAULT,
			COALESCE(COLUMN_COMMENT, '')
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	var columns []models.DiscoveredColumn
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			c   models.DiscoveredColumn
			def sql.NullString
		)
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.IsUnique,
			&c.OrdinalPosition, &def, &c.Comment); err != nil {
			return err
		}
		if def.Valid {
			c.DefaultValue = &def.String
		}
		columns = append(columns, c)
		return nil
	}, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// DiscoverIndexes returns non-primary indexes of one table from STATISTICS.
// Functional key parts have no COLUMN_NAME and are skipped.
func (a *Adapter) DiscoverIndexes(ctx context.Context, schemaName, tableName string) ([]models.Index, error) {
	if schemaName == "" {
		schemaName = a.config.Database
	}

	const query = `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE = 0
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		  AND INDEX_NAME <> 'PRIMARY'
		  AND COLUMN_NAME IS NOT NULL
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	var cols []datasource.IndexColumn
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var c datasource.IndexColumn
		if err := rows.Scan(&c.Index, &c.Column, &c.Unique); err != nil {
			return err
		}
		cols = append(cols, c)
		return nil
	}, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	return datasource.GroupIndexes(cols), nil
}

// DiscoverForeignKeys returns single-column foreign keys declared in the configured database.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	const query = `
		SELECT
			CONSTRAINT_NAME,
			TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME,
			REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ?
		  AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`

	var fks []models.ForeignKey
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var fk models.ForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return err
		}
		fks = append(fks, fk)
		return nil
	}, query, a.config.Database)
	if err != nil {
		return nil, err
	}
	return datasource.SingleColumnForeignKeys(fks), nil
}
