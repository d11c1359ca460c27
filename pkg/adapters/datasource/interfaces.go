package datasource

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// ConnectionAdapter is the capability every engine adapter provides.
// Each adapter owns one private connection; callers must Close it when done.
type ConnectionAdapter interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// DiscoverTables returns user tables, excluding the engine's system schemas.
	// Estimated row counts are never negative.
	DiscoverTables(ctx context.Context) ([]models.DiscoveredTable, error)

	// DiscoverColumns returns the columns of one table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]models.DiscoveredColumn, error)

	// DiscoverForeignKeys returns declared foreign keys. Engines without
	// enforced constraints return an empty slice.
	DiscoverForeignKeys(ctx context.Context) ([]models.ForeignKey, error)

	// SupportsForeignKeys reports whether DiscoverForeignKeys can return anything.
	SupportsForeignKeys() bool

	// CountRows runs an exact COUNT(*) against one table.
	CountRows(ctx context.Context, schemaName, tableName string) (int64, error)

	// Close releases the connection.
	Close() error
}

// IndexDiscoverer is implemented by adapters whose catalog exposes secondary
// indexes. Callers check for it with a type assertion.
type IndexDiscoverer interface {
	// DiscoverIndexes returns the non-primary indexes of one table, sorted by name.
	DiscoverIndexes(ctx context.Context, schemaName, tableName string) ([]models.Index, error)
}

// Options are the engine-wide limits handed to every adapter factory.
type Options struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	Logger         *zap.Logger
}

const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultQueryTimeout   = 60 * time.Second
)

// ForProfile applies a profile's timeout overrides and fills defaults.
func (o Options) ForProfile(p models.ConnectionProfile) Options {
	if p.ConnectTimeoutSeconds > 0 {
		o.ConnectTimeout = time.Duration(p.ConnectTimeoutSeconds) * time.Second
	}
	if p.QueryTimeoutSeconds > 0 {
		o.QueryTimeout = time.Duration(p.QueryTimeoutSeconds) * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
