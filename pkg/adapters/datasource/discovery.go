package datasource

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// SchemaDenyList is the set of system schemas an engine hides from discovery.
// Matching is case-insensitive.
type SchemaDenyList []string

// Excludes reports whether schema is a system schema.
func (d SchemaDenyList) Excludes(schema string) bool {
	for _, s := range d {
		if strings.EqualFold(s, schema) {
			return true
		}
	}
	return false
}

// Placeholders renders the list as a quoted SQL literal list: 'a', 'b'.
func (d SchemaDenyList) Placeholders() string {
	quoted := make([]string, len(d))
	for i, s := range d {
		quoted[i] = "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}

// RowEstimate converts a catalog estimate into (count, known). Engines report
// unknown statistics as NULL or -1; both map to (0, false).
func RowEstimate(v *int64) (int64, bool) {
	if v == nil || *v < 0 {
		return 0, false
	}
	return *v, true
}

// NormalizeTables drops system schemas, clamps negative estimates to zero and
// sorts by schema then table name.
func NormalizeTables(tables []models.DiscoveredTable, deny SchemaDenyList) []models.DiscoveredTable {
	out := make([]models.DiscoveredTable, 0, len(tables))
	for _, t := range tables {
		if deny.Excludes(t.SchemaName) {
			continue
		}
		if t.EstimatedRowCount < 0 {
			t.EstimatedRowCount = 0
			t.RowCountKnown = false
			t.RowCountExact = false
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SchemaName != out[j].SchemaName {
			return out[i].SchemaName < out[j].SchemaName
		}
		return out[i].TableName < out[j].TableName
	})
	return out
}

// WithTimeout derives a context bounded by d. A non-positive d leaves ctx unbounded.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// SingleColumnForeignKeys drops composite constraints, which arrive as one row
// per column. Order is preserved.
func SingleColumnForeignKeys(fks []models.ForeignKey) []models.ForeignKey {
	type constraintKey struct{ schema, table, name string }
	counts := make(map[constraintKey]int, len(fks))
	for _, fk := range fks {
		counts[constraintKey{fk.SourceSchema, fk.SourceTable, fk.ConstraintName}]++
	}

	out := make([]models.ForeignKey, 0, len(fks))
	for _, fk := range fks {
		if fk.ConstraintName != "" && counts[constraintKey{fk.SourceSchema, fk.SourceTable, fk.ConstraintName}] > 1 {
			continue
		}
		out = append(out, fk)
	}
	return out
}

// IndexColumn is one row of an index catalog query: one key column of one index.
type IndexColumn struct {
	Index  string
	Column string
	Unique bool
}

// GroupIndexes folds catalog rows, ordered by index name then key position, into
// one Index per name.
func GroupIndexes(rows []IndexColumn) []models.Index {
	var out []models.Index
	for _, r := range rows {
		if n := len(out); n > 0 && out[n-1].Name == r.Index {
			out[n-1].Columns = append(out[n-1].Columns, r.Column)
			continue
		}
		out = append(out, models.Index{Name: r.Index, Columns: []string{r.Column}, IsUnique: r.Unique})
	}
	return out
}
