package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscoveredTable is a table found in an external database. It is not persisted.
// EstimatedRowCount is never negative: an unknown estimate is reported as 0 with
// RowCountExact=false.
type DiscoveredTable struct {
	SchemaName        string `json:"schema_name"`
	TableName         string `json:"table_name"`
	EstimatedRowCount int64  `json:"estimated_row_count"`
	RowCountExact     bool   `json:"row_count_exact"`
	RowCountKnown     bool   `json:"row_count_known"`
	Comment           string `json:"comment,omitempty"`
}

// QualifiedName returns schema.table, or the bare table name when there is no schema.
func (t DiscoveredTable) QualifiedName() string {
	if t.SchemaName == "" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}

// DiscoveredColumn is a column of a discovered table.
type DiscoveredColumn struct {
	ColumnName      string  `json:"column_name"`
	DataType        string  `json:"data_type"`
	IsNullable      bool    `json:"is_nullable"`
	IsPrimaryKey    bool    `json:"is_primary_key"`
	IsUnique        bool    `json:"is_unique"`
	OrdinalPosition int     `json:"ordinal_position"`
	DefaultValue    *string `json:"default_value,omitempty"`
	Comment         string  `json:"comment,omitempty"`
}

// ForeignKey is a declared constraint between two columns.
type ForeignKey struct {
	ConstraintName string `json:"constraint_name,omitempty"`
	SourceSchema   string `json:"source_schema"`
	SourceTable    string `json:"source_table"`
	SourceColumn   string `json:"source_column"`
	TargetSchema   string `json:"target_schema"`
	TargetTable    string `json:"target_table"`
	TargetColumn   string `json:"target_column"`
}

// Index is a secondary index of a table. Primary key indexes are not listed;
// columns are in key order.
type Index struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	IsUnique bool     `json:"is_unique"`
}

// Table is an imported table, unique by (DataAgentID, EnvironmentID, SchemaName, TableName).
type Table struct {
	ID            uuid.UUID `json:"id"`
	DataAgentID   uuid.UUID `json:"data_agent_id"`
	EnvironmentID uuid.UUID `json:"environment_id"`
	SchemaName    string    `json:"schema_name"`
	TableName     string    `json:"table_name"`
	RowCount      int64     `json:"row_count"`
	Comment       string    `json:"comment,omitempty"`
	Indexes       []Index   `json:"indexes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Columns       []Column  `json:"columns,omitempty"` // populated on demand
}

// QualifiedName returns schema.table, or the bare table name when there is no schema.
func (t Table) QualifiedName() string {
	if t.SchemaName == "" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}

// Column is an imported column, unique by (TableID, ColumnName).
type Column struct {
	ID              uuid.UUID `json:"id"`
	TableID         uuid.UUID `json:"table_id"`
	ColumnName      string    `json:"column_name"`
	DataType        string    `json:"data_type"`
	IsNullable      bool      `json:"is_nullable"`
	IsPrimaryKey    bool      `json:"is_primary_key"`
	IsUnique        bool      `json:"is_unique"`
	OrdinalPosition int       `json:"ordinal_position"`
	DefaultValue    *string   `json:"default_value,omitempty"`
	Comment         string    `json:"comment,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ImportResult reports one successfully imported table.
type ImportResult struct {
	TableID         uuid.UUID `json:"table_id"`
	SchemaName      string    `json:"schema_name"`
	TableName       string    `json:"table_name"`
	RowCount        int64     `json:"row_count"`
	RowCountExact   bool      `json:"row_count_exact"`
	ColumnsImported int       `json:"columns_imported"`
	ForeignKeys     int       `json:"foreign_keys_imported"`
}

// ConnectionTestResult is the outcome of a connection test. It is a value, not an
// error: failures are reported with Success=false and a classified ErrorKind.
type ConnectionTestResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}
