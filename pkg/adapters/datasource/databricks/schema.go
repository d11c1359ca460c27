package databricks

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

var systemSchemas = datasource.SchemaDenyList{"information_schema"}

// SupportsForeignKeys returns true. Unity Catalog stores informational key constraints.
func (a *Adapter) SupportsForeignKeys() bool {
	return true
}

func (a *Adapter) infoSchema(view string) string {
	return quoteIdentifier(a.config.Catalog) + ".information_schema." + view
}

// DiscoverTables lists managed and external tables of the catalog. Unity Catalog
// does not expose row statistics here, so every estimate is unknown.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	query := `
		SELECT table_schema, table_name, comment
		FROM ` + a.infoSchema("tables") + `
		WHERE table_type IN ('MANAGED', 'EXTERNAL', 'BASE TABLE')
		  AND table_schema NOT IN (` + systemSchemas.Placeholders() + `)`
	var args []any
	if a.config.Schema != "" {
		query += " AND table_schema = ?"
		args = append(args, a.config.Schema)
	}
	query += " ORDER BY table_schema, table_name"

	var tables []models.DiscoveredTable
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			t       models.DiscoveredTable
			comment sql.NullString
		)
		if err := rows.Scan(&t.SchemaName, &t.TableName, &comment); err != nil {
			return err
		}
		t.Comment = comment.String
		tables = append(tables, t)
		return nil
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return datasource.NormalizeTables(tables, systemSchemas), nil
}

// DiscoverColumns reads information_schema.columns joined with primary key usage.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	if schemaName == "" {
		schemaName = a.config.Schema
	}

	query := `
		SELECT
			c.column_name,
			c.full_data_type,
			c.is_nullable,
			c.ordinal_position,
			c.column_default,
			c.comment,
			CASE WHEN pk.column_name IS NOT NULL THEN true ELSE false END AS is_primary_key
		FROM ` + a.infoSchema("columns") + ` c
		LEFT JOIN (
			SELECT kcu.table_schema, kcu.table_name, kcu.column_name
			FROM ` + a.infoSchema("table_constraints") + ` tc
			JOIN ` + a.infoSchema("key_column_usage") + ` kcu
			  ON tc.constraint_schema = kcu.constraint_schema AND tc.constraint_name = kcu.constraint_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
		) pk ON pk.table_schema = c.table_schema AND pk.table_name = c.table_name AND pk.column_name = c.column_name
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position`

	var columns []models.DiscoveredColumn
	err := a.db.Query(ctx, func(rows *sql.Rows) error {
		var (
			col          models.DiscoveredColumn
			nullable     string
			def, comment sql.NullString
		)
		if err := rows.Scan(&col.ColumnName, &col.DataType, &nullable, &col.OrdinalPosition, &def, &comment, &col.IsPrimaryKey); err != nil {
			return err
		}
		col.IsNullable = strings.EqualFold(nullable, "YES")
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

// DiscoverForeignKeys reads declared (informational) foreign keys of the catalog.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	query := `
		SELECT
			rc.constraint_name,
			fk.table_schema, fk.table_name, fk.column_name,
			pk.table_schema, pk.table_name, pk.column_name
		FROM ` + a.infoSchema("referential_constraints") + ` rc
		JOIN ` + a.infoSchema("key_column_usage") + ` fk
		  ON fk.constraint_schema = rc.constraint_schema AND fk.constraint_name = rc.constraint_name
		JOIN ` + a.infoSchema("key_column_usage") + ` pk
		  ON pk.constraint_schema = rc.unique_constraint_schema
		 AND pk.constraint_name = rc.unique_constraint_name
		 AND pk.ordinal_position = fk.position_in_unique_constraint
		ORDER BY fk.table_schema, fk.table_name, rc.constraint_name, fk.ordinal_position`

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
