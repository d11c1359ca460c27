package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/database"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// SchemaRepository provides data access for imported tables, columns and relationships.
type SchemaRepository interface {
	// Tables
	// UpsertTable inserts or updates by (data agent, environment, schema, table) and
	// sets table.ID to the persisted row's id.
	UpsertTable(ctx context.Context, table *models.Table) error
	GetTableByID(ctx context.Context, agentID, tableID uuid.UUID) (*models.Table, error)
	ListTablesByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.Table, error)
	// DeleteTable removes a table together with its columns and every relationship
	// that references it, in one transaction.
	DeleteTable(ctx context.Context, agentID, tableID uuid.UUID) error

	// Columns
	// UpsertColumn inserts or updates by (table, column name).
	UpsertColumn(ctx context.Context, column *models.Column) error
	ListColumnsByTable(ctx context.Context, tableID uuid.UUID) ([]*models.Column, error)

	// Relationships
	// UpsertRelationship inserts rel unless a row with the same key exists. It reports
	// whether a row was created.
	UpsertRelationship(ctx context.Context, rel *models.Relationship) (bool, error)
	// FindExistingRelationship returns the relationship with key, or nil when none exists.
	FindExistingRelationship(ctx context.Context, key models.RelationshipKey) (*models.Relationship, error)
	ListRelationshipsByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.Relationship, error)
}

type schemaRepository struct {
	db *database.DB
}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository(db *database.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

var _ SchemaRepository = (*schemaRepository)(nil)

// ============================================================================
// Table Methods
// ============================================================================

const tableColumns = `id, data_agent_id, environment_id, schema_name, table_name, row_count, comment, indexes, created_at, updated_at`

func (r *schemaRepository) UpsertTable(ctx context.Context, table *models.Table) error {
	now := time.Now()
	table.UpdatedAt = now
	if table.ID == uuid.Nil {
		table.ID = uuid.New()
		table.CreatedAt = now
	}
	if table.RowCount < 0 {
		table.RowCount = 0
	}
	indexes := table.Indexes
	if indexes == nil {
		indexes = []models.Index{}
	}
	indexesJSON, err := json.Marshal(indexes)
	if err != nil {
		return fmt.Errorf("failed to marshal indexes: %w", err)
	}

	query := `
		INSERT INTO schema_tables (` + tableColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (data_agent_id, environment_id, schema_name, table_name)
		DO UPDATE SET
			row_count = EXCLUDED.row_count,
			comment = EXCLUDED.comment,
			indexes = EXCLUDED.indexes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err = r.db.Querier(ctx).QueryRow(ctx, query,
		table.ID, table.DataAgentID, table.EnvironmentID, table.SchemaName, table.TableName,
		table.RowCount, table.Comment, indexesJSON, table.CreatedAt, table.UpdatedAt,
	).Scan(&table.ID, &table.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert table: %w", err)
	}
	return nil
}

func (r *schemaRepository) GetTableByID(ctx context.Context, agentID, tableID uuid.UUID) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM schema_tables WHERE data_agent_id = $1 AND id = $2`

	t, err := scanTable(r.db.Querier(ctx).QueryRow(ctx, query, agentID, tableID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return t, nil
}

func (r *schemaRepository) ListTablesByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM schema_tables
		WHERE data_agent_id = $1
		ORDER BY schema_name, table_name`

	rows, err := r.db.Querier(ctx).Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := make([]*models.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

func (r *schemaRepository) DeleteTable(ctx context.Context, agentID, tableID uuid.UUID) error {
	return r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)

		if _, err := q.Exec(ctx, `
			DELETE FROM schema_relationships
			WHERE data_agent_id = $1 AND (source_table_id = $2 OR target_table_id = $2)`,
			agentID, tableID); err != nil {
			return fmt.Errorf("failed to delete relationships: %w", err)
		}

		if _, err := q.Exec(ctx, `DELETE FROM schema_columns WHERE table_id = $1`, tableID); err != nil {
			return fmt.Errorf("failed to delete columns: %w", err)
		}

		tag, err := q.Exec(ctx, `DELETE FROM schema_tables WHERE data_agent_id = $1 AND id = $2`, agentID, tableID)
		if err != nil {
			return fmt.Errorf("failed to delete table: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// ============================================================================
// Column Methods
// ============================================================================

const columnColumns = `id, table_id, column_name, data_type, is_nullable, is_primary_key, is_unique,
	ordinal_position, default_value, comment, created_at, updated_at`

func (r *schemaRepository) UpsertColumn(ctx context.Context, column *models.Column) error {
	now := time.Now()
	column.UpdatedAt = now
	if column.ID == uuid.Nil {
		column.ID = uuid.New()
		column.CreatedAt = now
	}

	query := `
		INSERT INTO schema_columns (` + columnColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (table_id, column_name)
		DO UPDATE SET
			data_type = EXCLUDED.data_type,
			is_nullable = EXCLUDED.is_nullable,
			is_primary_key = EXCLUDED.is_primary_key,
			is_unique = EXCLUDED.is_unique,
			ordinal_position = EXCLUDED.ordinal_position,
			default_value = EXCLUDED.default_value,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		column.ID, column.TableID, column.ColumnName, column.DataType, column.IsNullable,
		column.IsPrimaryKey, column.IsUnique, column.OrdinalPosition, column.DefaultValue,
		column.Comment, column.CreatedAt, column.UpdatedAt,
	).Scan(&column.ID, &column.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert column: %w", err)
	}
	return nil
}

func (r *schemaRepository) ListColumnsByTable(ctx context.Context, tableID uuid.UUID) ([]*models.Column, error) {
	query := `
		SELECT ` + columnColumns + `
		FROM schema_columns
		WHERE table_id = $1
		ORDER BY ordinal_position, column_name`

	rows, err := r.db.Querier(ctx).Query(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	columns := make([]*models.Column, 0)
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ID, &c.TableID, &c.ColumnName, &c.DataType, &c.IsNullable,
			&c.IsPrimaryKey, &c.IsUnique, &c.OrdinalPosition, &c.DefaultValue, &c.Comment,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return columns, nil
}

// ============================================================================
// Relationship Methods
// ============================================================================

const relationshipColumns = `id, data_agent_id, environment_id, source_table_id, source_column,
	target_table_id, target_column, kind, confidence, description, example, source, is_verified, created_at`

func (r *schemaRepository) UpsertRelationship(ctx context.Context, rel *models.Relationship) (bool, error) {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	if rel.Source == "" {
		rel.Source = models.RelationshipSourceInferred
	}

	// Existing rows win: a re-run never downgrades a verified relationship.
	query := `
		INSERT INTO schema_relationships (` + relationshipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (data_agent_id, source_table_id, target_table_id, source_column, target_column)
		DO NOTHING`

	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		rel.ID, rel.DataAgentID, rel.EnvironmentID, rel.SourceTableID, rel.SourceColumn,
		rel.TargetTableID, rel.TargetColumn, rel.Kind, rel.Confidence, rel.Description,
		rel.Example, rel.Source, rel.IsVerified, rel.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert relationship: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *schemaRepository) FindExistingRelationship(ctx context.Context, key models.RelationshipKey) (*models.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM schema_relationships
		WHERE data_agent_id = $1 AND source_table_id = $2 AND target_table_id = $3
		  AND source_column = $4 AND target_column = $5`

	rel, err := scanRelationship(r.db.Querier(ctx).QueryRow(ctx, query,
		key.DataAgentID, key.SourceTableID, key.TargetTableID, key.SourceColumn, key.TargetColumn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find relationship: %w", err)
	}
	return rel, nil
}

func (r *schemaRepository) ListRelationshipsByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM schema_relationships
		WHERE data_agent_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Querier(ctx).Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	rels := make([]*models.Relationship, 0)
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}
	return rels, nil
}

func scanTable(row pgx.Row) (*models.Table, error) {
	var (
		t           models.Table
		indexesJSON []byte
	)
	if err := row.Scan(&t.ID, &t.DataAgentID, &t.EnvironmentID, &t.SchemaName, &t.TableName,
		&t.RowCount, &t.Comment, &indexesJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if len(indexesJSON) > 0 {
		if err := json.Unmarshal(indexesJSON, &t.Indexes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal indexes: %w", err)
		}
	}
	return &t, nil
}

func scanRelationship(row pgx.Row) (*models.Relationship, error) {
	var rel models.Relationship
	if err := row.Scan(&rel.ID, &rel.DataAgentID, &rel.EnvironmentID, &rel.SourceTableID, &rel.SourceColumn,
		&rel.TargetTableID, &rel.TargetColumn, &rel.Kind, &rel.Confidence, &rel.Description,
		&rel.Example, &rel.Source, &rel.IsVerified, &rel.CreatedAt); err != nil {
		return nil, err
	}
	return &rel, nil
}
