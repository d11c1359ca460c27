package bigquery

import (
	"context"

	"cloud.google.com/go/bigquery"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// SupportsForeignKeys returns true. BigQuery stores unenforced key constraints.
func (a *Adapter) SupportsForeignKeys() bool {
	return true
}

// DiscoverTables lists regular tables of the dataset with their NumRows.
// NumRows excludes the streaming buffer, so it is an estimate. The dataset ID
// is reported as the schema name.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	ids, err := a.client.TableIDs(ctx)
	if err != nil {
		return nil, a.fail(err)
	}

	tables := make([]models.DiscoveredTable, 0, len(ids))
	for _, id := range ids {
		md, err := a.client.TableMetadata(ctx, id)
		if err != nil {
			return nil, a.fail(err)
		}
		if md.Type != bigquery.RegularTable {
			continue
		}
		n := int64(md.NumRows)
		t := models.DiscoveredTable{
			SchemaName: a.config.Dataset,
			TableName:  id,
			Comment:    md.Description,
		}
		t.EstimatedRowCount, t.RowCountKnown = datasource.RowEstimate(&n)
		tables = append(tables, t)
	}
	return datasource.NormalizeTables(tables, nil), nil
}

// DiscoverColumns reads the table schema. Only top-level fields are returned;
// nested RECORD fields appear as a single RECORD column.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	md, err := a.client.TableMetadata(ctx, tableName)
	if err != nil {
		return nil, a.fail(err)
	}

	pk := make(map[string]bool)
	if md.TableConstraints != nil && md.TableConstraints.PrimaryKey != nil {
		for _, c := range md.TableConstraints.PrimaryKey.Columns {
			pk[c] = true
		}
	}

	columns := make([]models.DiscoveredColumn, 0, len(md.Schema))
	for i, f := range md.Schema {
		col := models.DiscoveredColumn{
			ColumnName:      f.Name,
			DataType:        fieldType(f),
			IsNullable:      !f.Required && !f.Repeated,
			IsPrimaryKey:    pk[f.Name],
			OrdinalPosition: i + 1,
			Comment:         f.Description,
		}
		if f.DefaultValueExpression != "" {
			def := f.DefaultValueExpression
			col.DefaultValue = &def
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// DiscoverForeignKeys collects single-column foreign keys declared in the
// dataset's table constraints. Keys referencing other datasets are kept.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	ids, err := a.client.TableIDs(ctx)
	if err != nil {
		return nil, a.fail(err)
	}

	var fks []models.ForeignKey
	for _, id := range ids {
		md, err := a.client.TableMetadata(ctx, id)
		if err != nil {
			return nil, a.fail(err)
		}
		if md.TableConstraints == nil {
			continue
		}
		for _, fk := range md.TableConstraints.ForeignKeys {
			if fk.ReferencedTable == nil || len(fk.ColumnReferences) != 1 {
				continue
			}
			ref := fk.ColumnReferences[0]
			fks = append(fks, models.ForeignKey{
				ConstraintName: fk.Name,
				SourceSchema:   a.config.Dataset,
				SourceTable:    id,
				SourceColumn:   ref.ReferencingColumn,
				TargetSchema:   fk.ReferencedTable.DatasetID,
				TargetTable:    fk.ReferencedTable.TableID,
				TargetColumn:   ref.ReferencedColumn,
			})
		}
	}
	return fks, nil
}

func fieldType(f *bigquery.FieldSchema) string {
	t := string(f.Type)
	if f.Repeated {
		return "ARRAY<" + t + ">"
	}
	return t
}
