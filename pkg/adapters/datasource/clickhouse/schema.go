package clickhouse

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

var systemSchemas = datasource.SchemaDenyList{"system", "INFORMATION_SCHEMA", "information_schema"}

// SupportsForeignKeys returns false; ClickHouse has no foreign key constraints.
func (a *Adapter) SupportsForeignKeys() bool {
	return false
}

// DiscoverTables lists tables in the configured database, or in every non-system
// database when none is configured. total_rows is NULL for engines that do not
// track it (Log, Memory, Distributed, views).
func (a *Adapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	query := `
		SELECT database, name, total_rows, comment
		FROM system.tables
		WHERE is_temporary = 0
		  AND engine NOT IN ('View', 'MaterializedView', 'LiveView', 'WindowView')
		  AND database NOT IN (` + systemSchemas.Placeholders() + `)`
	var args []any
	if a.config.Database != "" {
		query += " AND database = ?"
		args = append(args, a.config.Database)
	}
	query += " ORDER BY database, name"

	var tables []models.DiscoveredTable
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			t         models.DiscoveredTable
			totalRows sql.NullInt64
		)
		if err := rows.Scan(&t.SchemaName, &t.TableName, &totalRows, &t.Comment); err != nil {
			return err
		}
		var est *int64
		if totalRows.Valid {
			est = &totalRows.Int64
		}
		t.EstimatedRowCount, t.RowCountKnown = datasource.RowEstimate(est)
		tables = append(tables, t)
		return nil
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return datasource.NormalizeTables(tables, systemSchemas), nil
}

// DiscoverColumns reads system.columns. Nullability comes from the Nullable(...) type wrapper.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	if schemaName == "" {
		schemaName = a.config.Database
	}
	query := `
		SELECT name, type, is_in_primary_key, position, default_expression, comment
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position`

	var columns []models.DiscoveredColumn
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			col     models.DiscoveredColumn
			inPK    uint8
			defExpr string
		)
		if err := rows.Scan(&col.ColumnName, &col.DataType, &inPK, &col.OrdinalPosition, &defExpr, &col.Comment); err != nil {
			return err
		}
		col.IsPrimaryKey = inPK == 1
		col.IsNullable = isNullableType(col.DataType)
		if defExpr != "" {
			col.DefaultValue = &defExpr
		}
		columns = append(columns, col)
		return nil
	}, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// DiscoverForeignKeys returns nothing.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	return nil, nil
}

func isNullableType(t string) bool {
	t = strings.TrimPrefix(t, "LowCardinality(")
	return strings.HasPrefix(t, "Nullable(")
}
