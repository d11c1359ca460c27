// Package prompts builds the language model prompts used by the services.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// Section markers the model is asked to emit when it cannot use JSON mode.
const (
	AnalysisMarker       = "=== ANALYSIS ==="
	StructuredDataMarker = "=== STRUCTURED_DATA ==="
)

// TableContext is one imported table as shown to the model.
type TableContext struct {
	Name         string // schema-qualified when the table has a schema
	Environments []string
	RowCount     int64
	Comment      string
	Columns      []ColumnContext
	Indexes      []IndexContext
}

// IndexContext is a secondary index of a TableContext.
type IndexContext struct {
	Name     string
	Columns  []string
	IsUnique bool
}

// ColumnContext is one column of a TableContext.
type ColumnContext struct {
	Name         string
	DataType     string
	IsNullable   bool
	IsPrimaryKey bool
	IsUnique     bool
	DefaultValue *string
	Comment      string
}

// KnownRelationship is a relationship that already exists, declared or verified.
type KnownRelationship struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Kind         string
}

// NamingHint suggests that a column references another table because of its name,
// for example orders.customer_id → customers.id.
type NamingHint struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
}

// BuildRelationshipInferenceSystemMessage returns the system message for relationship inference.
func BuildRelationshipInferenceSystemMessage() string {
	return `You are a database schema analyst. You find relationships between tables that are not declared as foreign keys, using column names, types, keys and comments.`
}

// BuildRelationshipInferencePrompt creates the prompt asking the model to propose
// relationships between tables. With jsonMode the model answers with one JSON
// object; otherwise it writes an analysis section followed by a JSON array.
func BuildRelationshipInferencePrompt(tables []TableContext, known []KnownRelationship, jsonMode bool) string {
	var prompt strings.Builder

	prompt.WriteString("# Relationship Inference\n\n")
	prompt.WriteString("Identify relationships between the tables below that are not already known.\n\n")

	prompt.WriteString("## Database Schema\n\n")
	for _, table := range tables {
		prompt.WriteString(fmt.Sprintf("### %s\n", table.Name))
		if len(table.Environments) > 0 {
			prompt.WriteString(fmt.Sprintf("Environments: %s\n", strings.Join(table.Environments, ", ")))
		}
		prompt.WriteString(fmt.Sprintf("Row count: %d\n", table.RowCount))
		if table.Comment != "" {
			prompt.WriteString(fmt.Sprintf("Comment: %s\n", table.Comment))
		}
		if pks := primaryKeys(table); len(pks) > 0 {
			prompt.WriteString(fmt.Sprintf("Primary Key: %s\n", strings.Join(pks, ", ")))
		}
		if len(table.Indexes) > 0 {
			prompt.WriteString("Indexes:\n")
			for _, idx := range table.Indexes {
				prompt.WriteString(formatIndex(idx))
			}
		}
		prompt.WriteString("Columns:\n")
		for _, col := range table.Columns {
			prompt.WriteString(formatColumn(col))
		}
		prompt.WriteString("\n")
	}

	if len(known) > 0 {
		prompt.WriteString("## Known Relationships\n\n")
		prompt.WriteString("These already exist. Do not propose them again.\n")
		for _, rel := range known {
			prompt.WriteString(fmt.Sprintf("- %s.%s → %s.%s (%s)\n",
				rel.SourceTable, rel.SourceColumn, rel.TargetTable, rel.TargetColumn, rel.Kind))
		}
		prompt.WriteString("\n")
	}

	if hints := NamingHints(tables); len(hints) > 0 {
		prompt.WriteString("## Naming Hints\n\n")
		prompt.WriteString("Column names that match another table's name:\n")
		for _, h := range hints {
			prompt.WriteString(fmt.Sprintf("- %s.%s → %s.%s\n", h.SourceTable, h.SourceColumn, h.TargetTable, h.TargetColumn))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Guidelines\n\n")
	prompt.WriteString("- Propose a relationship only when the column types are compatible\n")
	prompt.WriteString("- The target column should be a primary key or unique column\n")
	prompt.WriteString("- Use `one_to_one`, `one_to_many` or `many_to_many` for `kind`\n")
	prompt.WriteString("- `confidence` is a number between 0.0 and 1.0; omit anything below 0.7\n")
	prompt.WriteString("- Use table names exactly as written in the schema above\n")
	if hasEnvironments(tables) {
		prompt.WriteString("- Tables are imported from several environments; propose each relationship once, it applies wherever both tables exist\n")
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Output Format\n\n")
	if jsonMode {
		prompt.WriteString("Respond with one JSON object:\n")
		prompt.WriteString("```json\n")
		prompt.WriteString(`{
  "analysis": "Short explanation of what you found",
  "relationships": [` + exampleRelationship + `]
}
`)
		prompt.WriteString("```\n")
		return prompt.String()
	}

	prompt.WriteString("Write your reasoning after the line `" + AnalysisMarker + "`, then the relationships after the line `" + StructuredDataMarker + "`:\n\n")
	prompt.WriteString(AnalysisMarker + "\n")
	prompt.WriteString("Short explanation of what you found\n\n")
	prompt.WriteString(StructuredDataMarker + "\n")
	prompt.WriteString("```json\n")
	prompt.WriteString("[" + exampleRelationship + "]\n")
	prompt.WriteString("```\n\n")
	prompt.WriteString("The structured data section must be a JSON array. Respond with JSON only, no prose, after " + StructuredDataMarker + ".\n")

	return prompt.String()
}

const exampleRelationship = `
    {
      "source_table": "orders",
      "source_column": "customer_id",
      "target_table": "customers",
      "target_column": "id",
      "kind": "one_to_many",
      "confidence": 0.95,
      "description": "Each order belongs to one customer",
      "example": "orders.customer_id = customers.id"
    }
  `

// NamingHints returns columns named <singular>_id (or <singular>Id) where a table
// named <plural> or <singular> exists. The target column is that table's single
// primary key, or "id".
func NamingHints(tables []TableContext) []NamingHint {
	byName := make(map[string]TableContext, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(bareName(t.Name))] = t
	}

	var hints []NamingHint
	for _, t := range tables {
		for _, col := range t.Columns {
			base, ok := referencePrefix(col.Name)
			if !ok || col.IsPrimaryKey {
				continue
			}
			for _, candidate := range []string{inflection.Plural(base), base} {
				target, found := byName[candidate]
				if !found || target.Name == t.Name {
					continue
				}
				targetColumn := "id"
				if pks := primaryKeys(target); len(pks) == 1 {
					targetColumn = pks[0]
				}
				hints = append(hints, NamingHint{
					SourceTable:  t.Name,
					SourceColumn: col.Name,
					TargetTable:  target.Name,
					TargetColumn: targetColumn,
				})
				break
			}
		}
	}

	sort.SliceStable(hints, func(i, j int) bool {
		if hints[i].SourceTable != hints[j].SourceTable {
			return hints[i].SourceTable < hints[j].SourceTable
		}
		return hints[i].SourceColumn < hints[j].SourceColumn
	})
	return hints
}

// referencePrefix returns "customer" for customer_id and customerId.
func referencePrefix(column string) (string, bool) {
	lower := strings.ToLower(column)
	switch {
	case strings.HasSuffix(lower, "_id") && len(lower) > 3:
		return strings.TrimSuffix(lower, "_id"), true
	case strings.HasSuffix(column, "Id") && len(column) > 2:
		return strings.ToLower(strings.TrimSuffix(column, "Id")), true
	}
	return "", false
}

func hasEnvironments(tables []TableContext) bool {
	for _, t := range tables {
		if len(t.Environments) > 0 {
			return true
		}
	}
	return false
}

func bareName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func primaryKeys(t TableContext) []string {
	var pks []string
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			pks = append(pks, col.Name)
		}
	}
	return pks
}

func formatIndex(idx IndexContext) string {
	line := fmt.Sprintf("- %s (%s)", idx.Name, strings.Join(idx.Columns, ", "))
	if idx.IsUnique {
		line += " unique"
	}
	return line + "\n"
}

func formatColumn(col ColumnContext) string {
	var flags []string
	if col.IsPrimaryKey {
		flags = append(flags, "PK")
	}
	if col.IsUnique && !col.IsPrimaryKey {
		flags = append(flags, "unique")
	}
	if col.IsNullable {
		flags = append(flags, "nullable")
	} else {
		flags = append(flags, "not null")
	}
	if col.DefaultValue != nil {
		flags = append(flags, "default "+*col.DefaultValue)
	}

	line := fmt.Sprintf("- %s (%s) [%s]", col.Name, col.DataType, strings.Join(flags, ", "))
	if col.Comment != "" {
		line += " -- " + col.Comment
	}
	return line + "\n"
}
