package mssql

import (
	"context"
	"database/sql"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// systemSchemas are hidden in addition to objects flagged is_ms_shipped.
var systemSchemas = datasource.SchemaDenyList{"sys", "INFORMATION_SCHEMA", "guest"}

// SupportsForeignKeys returns true since SQL Server supports foreign keys.
func (a *Adapter) SupportsForeignKeys() bool {
	return true
}

// DiscoverTables returns all user tables. Row counts come from sys.partitions
// (heap or clustered index), which is maintained metadata rather than an exact count.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name,
	    SUM(p.rows) AS row_count,
	    CAST(MAX(ep.value) AS nvarchar(4000)) AS table_comment
	FROM sys.tables t
	INNER JOIN sys.partitions p ON t.object_id = p.object_id
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = t.object_id AND ep.minor_id = 0 AND ep.class = 1 AND ep.name = 'MS_Description'
	WHERE p.index_id IN (0, 1)  -- Heap or clustered index
	  AND t.is_ms_shipped = 0   -- Exclude system tables
	  AND SCHEMA_NAME(t.schema_id) NOT IN (` + systemSchemas.Placeholders() + `)
	GROUP BY t.schema_id, t.name
	ORDER BY table_schema, table_name
	`

	var tables []models.DiscoveredTable
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			t        models.DiscoveredTable
			estimate sql.NullInt64
			comment  sql.NullString
		)
		if err := rows.Scan(&t.SchemaName, &t.TableName, &estimate, &comment); err != nil {
			return err
		}
		var est *int64
		if estimate.Valid {
			est = &estimate.Int64
		}
		t.EstimatedRowCount, t.RowCountKnown = datasource.RowEstimate(est)
		t.Comment = comment.String
		tables = append(tables, t)
		return nil
	}, query)
	if err != nil {
		return nil, err
	}
	return datasource.NormalizeTables(tables, systemSchemas), nil
}

// DiscoverColumns returns columns for a specific table.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	if schemaName == "" {
		schemaName = "dbo"
	}

	query := `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    c.max_length,
	    c.precision,
	    c.scale,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    c.column_id AS ordinal_position,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
	    CASE WHEN uq.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_unique,
	    dc.definition AS default_value,
	    CAST(ep.value AS nvarchar(4000)) AS column_comment
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN (
	    -- Single-column unique constraints and indexes only
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_unique = 1 AND i.is_primary_key = 0
	      AND (SELECT COUNT(*) FROM sys.index_columns x WHERE x.object_id = i.object_id AND x.index_id = i.index_id) = 1
	) uq ON c.object_id = uq.object_id AND c.column_id = uq.column_id
	LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.class = 1 AND ep.name = 'MS_Description'
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	var columns []models.DiscoveredColumn
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			col                         models.DiscoveredColumn
			typeName                    string
			maxLength, precision, scale int
			isNullable, isPK, isUnique  int
			def, comment                sql.NullString
		)
		if err := rows.Scan(&col.ColumnName, &typeName, &maxLength, &precision, &scale,
			&isNullable, &col.OrdinalPosition, &isPK, &isUnique, &def, &comment); err != nil {
			return err
		}
		col.DataType = formatType(typeName, maxLength, precision, scale)
		col.IsNullable = isNullable == 1
		col.IsPrimaryKey = isPK == 1
		col.IsUnique = isUnique == 1
		if def.Valid {
			col.DefaultValue = &def.String
		}
		col.Comment = comment.String
		columns = append(columns, col)
		return nil
	}, query, sql.Named("schema", schemaName), sql.Named("table", tableName))
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// DiscoverIndexes returns non-primary rowstore and columnstore indexes of one
// table. Heaps and included columns are left out.
func (a *Adapter) DiscoverIndexes(ctx context.Context, schemaName, tableName string) ([]models.Index, error) {
	if schemaName == "" {
		schemaName = "dbo"
	}

	query := `
	SET NOCOUNT ON;
	SELECT i.name, c.name, CASE WHEN i.is_unique = 1 THEN 1 ELSE 0 END
	FROM sys.indexes i
	INNER JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	INNER JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
	WHERE i.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	  AND i.is_primary_key = 0
	  AND i.type > 0
	  AND ic.is_included_column = 0
	ORDER BY i.name, ic.key_ordinal
	`

	var cols []datasource.IndexColumn
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			c      datasource.IndexColumn
			unique int
		)
		if err := rows.Scan(&c.Index, &c.Column, &unique); err != nil {
			return err
		}
		c.Unique = unique == 1
		cols = append(cols, c)
		return nil
	}, query, sql.Named("schema", schemaName), sql.Named("table", tableName))
	if err != nil {
		return nil, err
	}
	return datasource.GroupIndexes(cols), nil
}

// DiscoverForeignKeys returns all single-column foreign key relationships.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    fk.name AS constraint_name,
	    SCHEMA_NAME(fk.schema_id) AS source_schema,
	    OBJECT_NAME(fk.parent_object_id) AS source_table,
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
	    SCHEMA_NAME(rt.schema_id) AS target_schema,
	    OBJECT_NAME(fk.referenced_object_id) AS target_table,
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
	WHERE fk.is_ms_shipped = 0
	ORDER BY source_schema, source_table, fk.name, fkc.constraint_column_id
	`

	var fks []models.ForeignKey
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var fk models.ForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return err
		}
		fks = append(fks, fk)
		return nil
	}, query)
	if err != nil {
		return nil, err
	}
	return datasource.SingleColumnForeignKeys(fks), nil
}
