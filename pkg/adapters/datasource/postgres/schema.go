package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// systemSchemas are hidden from discovery. Per-backend temp and toast schemas
// (pg_temp_N, pg_toast_temp_N) are excluded by prefix in the queries.
var systemSchemas = datasource.SchemaDenyList{"pg_catalog", "information_schema", "pg_toast"}

// qualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	return pgx.Identifier{schemaName}.Sanitize() + "." + quotedTable
}

// SupportsForeignKeys returns true since PostgreSQL enforces FK constraints.
func (a *Adapter) SupportsForeignKeys() bool {
	return true
}

// DiscoverTables returns ordinary and partitioned tables outside system schemas.
// reltuples is -1 for tables that were never vacuumed or analyzed; such tables
// are reported with RowCountKnown=false.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	query := `
		SELECT
			n.nspname,
			c.relname,
			c.reltuples::bigint,
			obj_description(c.oid, 'pg_class')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND NOT c.relispartition
		  AND n.nspname NOT IN (` + systemSchemas.Placeholders() + `)
		  AND n.nspname NOT LIKE 'pg_temp_%'
		  AND n.nspname NOT LIKE 'pg_toast_temp_%'
		ORDER BY n.nspname, c.relname
	`

	rows, err := a.conn.Query(ctx, query)
	if err != nil {
		return nil, a.fail(err)
	}
	defer rows.Close()

	var tables []models.DiscoveredTable
	for rows.Next() {
		var (
			t        models.DiscoveredTable
			estimate *int64
			comment  *string
		)
		if err := rows.Scan(&t.SchemaName, &t.TableName, &estimate, &comment); err != nil {
			return nil, a.fail(err)
		}
		t.EstimatedRowCount, t.RowCountKnown = datasource.RowEstimate(estimate)
		if comment != nil {
			t.Comment = *comment
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail(err)
	}

	return datasource.NormalizeTables(tables, systemSchemas), nil
}

// DiscoverColumns returns columns for a specific table from pg_attribute.
// pg_index.indisprimary detects PKs even when created as unique indexes (common
// with ORMs); every column of a composite PK is flagged.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	const query = `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			COALESCE(pk.is_pk, false),
			COALESCE(uq.is_unique, false),
			a.attnum::int,
			pg_get_expr(d.adbin, d.adrelid),
			col_description(a.attrelid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class t ON t.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		LEFT JOIN LATERAL (
			SELECT true AS is_pk
			FROM pg_index ix
			WHERE ix.indrelid = t.oid AND ix.indisprimary AND a.attnum = ANY(ix.indkey)
			LIMIT 1
		) pk ON true
		LEFT JOIN LATERAL (
			-- Single-column unique indexes only
			SELECT true AS is_unique
			FROM pg_index ix
			WHERE ix.indrelid = t.oid AND ix.indisunique AND NOT ix.indisprimary
			  AND ix.indnatts = 1 AND ix.indkey[0] = a.attnum
			LIMIT 1
		) uq ON true
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := a.conn.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, a.fail(err)
	}
	defer rows.Close()

	var columns []models.DiscoveredColumn
	for rows.Next() {
		var (
			c       models.DiscoveredColumn
			comment *string
		)
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.IsUnique,
			&c.OrdinalPosition, &c.DefaultValue, &comment); err != nil {
			return nil, a.fail(err)
		}
		if comment != nil {
			c.Comment = *comment
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail(err)
	}
	return columns, nil
}

// DiscoverIndexes returns non-primary indexes of one table. Expression columns
// have attnum 0 and are left out.
func (a *Adapter) DiscoverIndexes(ctx context.Context, schemaName, tableName string) ([]models.Index, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	const query = `
		SELECT ic.relname, att.attname, ix.indisunique
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute att ON att.attrelid = t.oid AND att.attnum = k.attnum
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		ORDER BY ic.relname, k.ord
	`

	rows, err := a.conn.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, a.fail(err)
	}
	defer rows.Close()

	var cols []datasource.IndexColumn
	for rows.Next() {
		var c datasource.IndexColumn
		if err := rows.Scan(&c.Index, &c.Column, &c.Unique); err != nil {
			return nil, a.fail(err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail(err)
	}
	return datasource.GroupIndexes(cols), nil
}

// DiscoverForeignKeys returns all single-column foreign keys outside system schemas.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	query := `
		SELECT
			con.conname,
			sn.nspname, st.relname, sa.attname,
			tn.nspname, tt.relname, ta.attname
		FROM pg_constraint con
		JOIN pg_class st ON st.oid = con.conrelid
		JOIN pg_namespace sn ON sn.oid = st.relnamespace
		JOIN pg_class tt ON tt.oid = con.confrelid
		JOIN pg_namespace tn ON tn.oid = tt.relnamespace
		JOIN pg_attribute sa ON sa.attrelid = con.conrelid AND sa.attnum = con.conkey[1]
		JOIN pg_attribute ta ON ta.attrelid = con.confrelid AND ta.attnum = con.confkey[1]
		WHERE con.contype = 'f'
		  AND array_length(con.conkey, 1) = 1
		  AND sn.nspname NOT IN (` + systemSchemas.Placeholders() + `)
		ORDER BY sn.nspname, st.relname, con.conname
	`

	rows, err := a.conn.Query(ctx, query)
	if err != nil {
		return nil, a.fail(err)
	}
	defer rows.Close()

	var fks []models.ForeignKey
	for rows.Next() {
		var fk models.ForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, a.fail(err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail(err)
	}
	return fks, nil
}
