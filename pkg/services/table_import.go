package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/audit"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/logging"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/repositories"
	sqlutil "github.com/ekaya-inc/ekaya-dataagents/pkg/sql"
)

// TableImportService copies the metadata of selected tables into the metadata store.
type TableImportService interface {
	// Import imports tableNames (schema.table or bare names) independently. A table
	// that fails is logged and left out of the results; results keep request order.
	Import(ctx context.Context, agentID, envID uuid.UUID, tableNames []string) ([]models.ImportResult, error)

	// DeleteTable removes an imported table with its columns and relationships.
	DeleteTable(ctx context.Context, agentID, tableID uuid.UUID) error
}

// ImportOptions tune the import pipeline.
type ImportOptions struct {
	// Workers bounds how many tables are imported at once.
	Workers int
	// CountFallback runs COUNT(*) for tables whose row estimate is unknown.
	CountFallback bool
}

type tableImportService struct {
	introspector SchemaIntrospector
	schemaRepo   repositories.SchemaRepository
	auditor      *audit.SecurityAuditor
	opts         ImportOptions
	logger       *zap.Logger
}

// NewTableImportService creates a TableImportService.
func NewTableImportService(
	introspector SchemaIntrospector,
	schemaRepo repositories.SchemaRepository,
	auditor *audit.SecurityAuditor,
	opts ImportOptions,
	logger *zap.Logger,
) TableImportService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &tableImportService{
		introspector: introspector,
		schemaRepo:   schemaRepo,
		auditor:      auditor,
		opts:         opts,
		logger:       logger.Named("import"),
	}
}

var _ TableImportService = (*tableImportService)(nil)

// importedTable is the outcome of one worker.
type importedTable struct {
	result  models.ImportResult
	table   *models.Table
	columns []models.DiscoveredColumn
}

func (s *tableImportService) Import(ctx context.Context, agentID, envID uuid.UUID, tableNames []string) ([]models.ImportResult, error) {
	adapter, target, err := s.introspector.OpenAdapter(ctx, agentID, envID)
	if err != nil {
		return nil, err
	}

	discovered, err := adapter.DiscoverTables(ctx)
	if err != nil {
		s.closeAdapter(adapter)
		return nil, err
	}
	var fks []models.ForeignKey
	if adapter.SupportsForeignKeys() {
		fks, err = adapter.DiscoverForeignKeys(ctx)
		if err != nil {
			s.logger.Warn("Foreign key discovery failed, importing tables without them",
				zap.String("data_agent_id", agentID.String()),
				zap.String("error", logging.SanitizeError(err)))
			fks = nil
		}
	}
	s.closeAdapter(adapter)

	index := newTableIndex(discovered)
	imported := make([]*importedTable, len(tableNames))

	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, name := range tableNames {
		g.Go(func() error {
			res, err := s.importOne(gctx, target, index, name)
			if err != nil {
				s.logger.Warn("Skipping table",
					zap.String("table", name),
					zap.String("error_kind", string(apperrors.KindOf(err))),
					zap.String("error", logging.SanitizeError(err)))
				failed.Add(1)
				return nil
			}
			imported[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.importForeignKeys(ctx, target, imported, fks)

	results := make([]models.ImportResult, 0, len(tableNames))
	for _, res := range imported {
		if res != nil {
			results = append(results, res.result)
		}
	}

	s.logger.Info("Import finished",
		zap.String("data_agent_id", agentID.String()),
		zap.String("environment_id", envID.String()),
		zap.Int("requested", len(tableNames)),
		zap.Int("imported", len(results)),
		zap.Int32("failed", failed.Load()))

	return results, nil
}

// importOne imports a single table through its own adapter.
func (s *tableImportService) importOne(ctx context.Context, target *ConnectionTarget, index *tableIndex, name string) (*importedTable, error) {
	parsed, err := sqlutil.ParseTableName(name)
	if err != nil {
		var injErr *sqlutil.InjectionError
		if errors.As(err, &injErr) {
			s.auditor.LogInjectionAttempt(ctx, target.Agent.ID, target.Environment.ID, audit.InjectionDetails{
				Input:       logging.TruncateString(name, 256),
				Fingerprint: injErr.Fingerprint,
				Operation:   "import_tables",
			})
		}
		return nil, apperrors.NewConfigurationError("%s", logging.TruncateString(err.Error(), 256))
	}
	found, err := index.find(parsed)
	if err != nil {
		return nil, err
	}

	adapter, err := target.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.closeAdapter(adapter)

	columns, err := adapter.DiscoverColumns(ctx, found.SchemaName, found.TableName)
	if err != nil {
		return nil, err
	}

	rowCount, exact := found.EstimatedRowCount, found.RowCountExact
	if !found.RowCountKnown && s.opts.CountFallback {
		n, err := adapter.CountRows(ctx, found.SchemaName, found.TableName)
		if err != nil {
			s.logger.Warn("Row count fallback failed, keeping 0",
				zap.String("table", found.QualifiedName()),
				zap.String("error", logging.SanitizeError(err)))
		} else {
			rowCount, exact = n, true
		}
	}

	var indexes []models.Index
	if discoverer, ok := adapter.(datasource.IndexDiscoverer); ok {
		indexes, err = discoverer.DiscoverIndexes(ctx, found.SchemaName, found.TableName)
		if err != nil {
			s.logger.Warn("Index discovery failed, importing without indexes",
				zap.String("table", found.QualifiedName()),
				zap.String("error", logging.SanitizeError(err)))
			indexes = nil
		}
	}

	table := &models.Table{
		DataAgentID:   target.Agent.ID,
		EnvironmentID: target.Environment.ID,
		SchemaName:    found.SchemaName,
		TableName:     found.TableName,
		RowCount:      rowCount,
		Comment:       found.Comment,
		Indexes:       indexes,
	}
	if err := s.schemaRepo.UpsertTable(ctx, table); err != nil {
		return nil, fmt.Errorf("upsert table %s: %w", found.QualifiedName(), err)
	}

	for _, col := range columns {
		column := &models.Column{
			TableID:         table.ID,
			ColumnName:      col.ColumnName,
			DataType:        col.DataType,
			IsNullable:      col.IsNullable,
			IsPrimaryKey:    col.IsPrimaryKey,
			IsUnique:        col.IsUnique,
			OrdinalPosition: col.OrdinalPosition,
			DefaultValue:    col.DefaultValue,
			Comment:         col.Comment,
		}
		if err := s.schemaRepo.UpsertColumn(ctx, column); err != nil {
			return nil, fmt.Errorf("upsert column %s.%s: %w", found.QualifiedName(), col.ColumnName, err)
		}
	}

	return &importedTable{
		result: models.ImportResult{
			TableID:         table.ID,
			SchemaName:      table.SchemaName,
			TableName:       table.TableName,
			RowCount:        rowCount,
			RowCountExact:   exact,
			ColumnsImported: len(columns),
		},
		table:   table,
		columns: columns,
	}, nil
}

// importForeignKeys stores declared foreign keys whose source table was imported in
// this run and whose target table is imported in the same environment. They are
// stored verified; existing rows are left alone.
func (s *tableImportService) importForeignKeys(ctx context.Context, target *ConnectionTarget, imported []*importedTable, fks []models.ForeignKey) {
	if len(fks) == 0 {
		return
	}

	bySource := make(map[string]*importedTable)
	for _, res := range imported {
		if res != nil {
			bySource[strings.ToLower(res.table.QualifiedName())] = res
		}
	}
	if len(bySource) == 0 {
		return
	}

	persisted, err := s.schemaRepo.ListTablesByAgent(ctx, target.Agent.ID)
	if err != nil {
		s.logger.Warn("Could not list tables for foreign key import", zap.Error(err))
		return
	}
	tableIDs := make(map[string]uuid.UUID, len(persisted))
	for _, t := range persisted {
		if t.EnvironmentID == target.Environment.ID {
			tableIDs[strings.ToLower(t.QualifiedName())] = t.ID
		}
	}

	for _, fk := range fks {
		source, ok := bySource[strings.ToLower(qualify(fk.SourceSchema, fk.SourceTable))]
		if !ok {
			continue
		}
		targetID, ok := tableIDs[strings.ToLower(qualify(fk.TargetSchema, fk.TargetTable))]
		if !ok {
			continue
		}

		rel := &models.Relationship{
			DataAgentID:   target.Agent.ID,
			EnvironmentID: target.Environment.ID,
			SourceTableID: source.table.ID,
			SourceColumn:  fk.SourceColumn,
			TargetTableID: targetID,
			TargetColumn:  fk.TargetColumn,
			Kind:          foreignKeyCardinality(source.columns, fk.SourceColumn),
			Confidence:    1.0,
			Description:   strings.TrimSpace("Declared foreign key " + fk.ConstraintName),
			Source:        models.RelationshipSourceForeignKey,
			IsVerified:    true,
		}
		created, err := s.schemaRepo.UpsertRelationship(ctx, rel)
		if err != nil {
			s.logger.Warn("Failed to store foreign key",
				zap.String("source", source.table.QualifiedName()+"."+fk.SourceColumn),
				zap.Error(err))
			continue
		}
		if created {
			source.result.ForeignKeys++
		}
	}
}

// foreignKeyCardinality is one_to_one when the referencing column is itself
// unique, one_to_many otherwise.
func foreignKeyCardinality(columns []models.DiscoveredColumn, name string) models.Cardinality {
	for _, col := range columns {
		if strings.EqualFold(col.ColumnName, name) && (col.IsPrimaryKey || col.IsUnique) {
			return models.CardinalityOneToOne
		}
	}
	return models.CardinalityOneToMany
}

func (s *tableImportService) DeleteTable(ctx context.Context, agentID, tableID uuid.UUID) error {
	if err := s.schemaRepo.DeleteTable(ctx, agentID, tableID); err != nil {
		return err
	}
	s.logger.Info("Deleted table",
		zap.String("data_agent_id", agentID.String()),
		zap.String("table_id", tableID.String()))
	return nil
}

func (s *tableImportService) closeAdapter(adapter datasource.ConnectionAdapter) {
	if err := adapter.Close(); err != nil {
		s.logger.Warn("Failed to close adapter", zap.String("error", logging.SanitizeError(err)))
	}
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// tableIndex resolves requested names against discovered tables, case-insensitively.
type tableIndex struct {
	qualified map[string]models.DiscoveredTable
	bare      map[string][]models.DiscoveredTable
}

func newTableIndex(tables []models.DiscoveredTable) *tableIndex {
	idx := &tableIndex{
		qualified: make(map[string]models.DiscoveredTable, len(tables)),
		bare:      make(map[string][]models.DiscoveredTable, len(tables)),
	}
	for _, t := range tables {
		idx.qualified[strings.ToLower(t.QualifiedName())] = t
		bare := strings.ToLower(t.TableName)
		idx.bare[bare] = append(idx.bare[bare], t)
	}
	return idx
}

func (idx *tableIndex) find(name sqlutil.TableName) (models.DiscoveredTable, error) {
	if name.Schema != "" {
		if t, ok := idx.qualified[strings.ToLower(name.Schema+"."+name.Table)]; ok {
			return t, nil
		}
		return models.DiscoveredTable{}, fmt.Errorf("table %s: %w", name, apperrors.ErrNotFound)
	}

	matches := idx.bare[strings.ToLower(name.Table)]
	switch len(matches) {
	case 0:
		return models.DiscoveredTable{}, fmt.Errorf("table %s: %w", name, apperrors.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return models.DiscoveredTable{}, apperrors.NewConfigurationError(
		"table name %q is ambiguous across %d schemas; qualify it as schema.table", name.Table, len(matches))
}
