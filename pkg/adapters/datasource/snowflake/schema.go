package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

var systemSchemas = datasource.SchemaDenyList{"INFORMATION_SCHEMA"}

// SupportsForeignKeys returns true. Snowflake records declared keys but does not enforce them.
func (a *Adapter) SupportsForeignKeys() bool {
	return true
}

// DiscoverTables lists base tables of the configured database. ROW_COUNT is
// maintained metadata and NULL for external tables.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	query := `
		SELECT TABLE_SCHEMA, TABLE_NAME, ROW_COUNT, COMMENT
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		  AND TABLE_SCHEMA NOT IN (` + systemSchemas.Placeholders() + `)`
	var args []any
	if a.config.Schema != "" {
		query += " AND TABLE_SCHEMA = ?"
		args = append(args, strings.ToUpper(a.config.Schema))
	}
	query += " ORDER BY TABLE_SCHEMA, TABLE_NAME"

	var tables []models.DiscoveredTable
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			t        models.DiscoveredTable
			rowCount sql.NullInt64
			comment  sql.NullString
		)
		if err := rows.Scan(&t.SchemaName, &t.TableName, &rowCount, &comment); err != nil {
			return err
		}
		var est *int64
		if rowCount.Valid {
			est = &rowCount.Int64
		}
		t.EstimatedRowCount, t.RowCountKnown = datasource.RowEstimate(est)
		t.Comment = comment.String
		tables = append(tables, t)
		return nil
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return datasource.NormalizeTables(tables, systemSchemas), nil
}

// DiscoverColumns reads INFORMATION_SCHEMA.COLUMNS and marks primary key columns
// from SHOW PRIMARY KEYS.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	if schemaName == "" {
		schemaName = strings.ToUpper(a.config.Schema)
	}

	pkColumns, err := a.primaryKeyColumns(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, ORDINAL_POSITION, COLUMN_DEFAULT, COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	var columns []models.DiscoveredColumn
	err = a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			col          models.DiscoveredColumn
			nullable     string
			def, comment sql.NullString
		)
		if err := rows.Scan(&col.ColumnName, &col.DataType, &nullable, &col.OrdinalPosition, &def, &comment); err != nil {
			return err
		}
		col.IsNullable = strings.EqualFold(nullable, "YES")
		col.IsPrimaryKey = pkColumns[col.ColumnName]
		if def.Valid {
			col.DefaultValue = &def.String
		}
		col.Comment = comment.String
		columns = append(columns, col)
		return nil
	}, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	return columns, nil
}

func (a *Adapter) primaryKeyColumns(ctx context.Context, schemaName, tableName string) (map[string]bool, error) {
	query := fmt.Sprintf("SHOW PRIMARY KEYS IN TABLE %s.%s.%s",
		quoteIdentifier(strings.ToUpper(a.config.Database)), quoteIdentifier(schemaName), quoteIdentifier(tableName))

	pk := make(map[string]bool)
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		row, err := scanNamed(rows)
		if err != nil {
			return err
		}
		pk[row["column_name"]] = true
		return nil
	}, query)
	if err != nil {
		return nil, err
	}
	return pk, nil
}

// DiscoverForeignKeys reads SHOW IMPORTED KEYS for the configured database.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	query := "SHOW IMPORTED KEYS IN DATABASE " + quoteIdentifier(strings.ToUpper(a.config.Database))

	var fks []models.ForeignKey
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		row, err := scanNamed(rows)
		if err != nil {
			return err
		}
		fks = append(fks, models.ForeignKey{
			ConstraintName: row["fk_name"],
			SourceSchema:   row["fk_schema_name"],
			SourceTable:    row["fk_table_name"],
			SourceColumn:   row["fk_column_name"],
			TargetSchema:   row["pk_schema_name"],
			TargetTable:    row["pk_table_name"],
			TargetColumn:   row["pk_column_name"],
		})
		return nil
	}, query)
	if err != nil {
		return nil, err
	}
	return datasource.SingleColumnForeignKeys(fks), nil
}

// scanNamed scans a SHOW command row into a map keyed by lower-case column name.
// SHOW output columns vary between Snowflake releases, so they are read by name.
func scanNamed(rows *sql.Rows) (map[string]string, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]sql.NullString, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	row := make(map[string]string, len(names))
	for i, name := range names {
		row[strings.ToLower(name)] = values[i].String
	}
	return row, nil
}
