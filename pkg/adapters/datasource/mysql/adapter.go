package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Adapter provides MySQL connectivity over a single private connection.
type Adapter struct {
	config *Config
	db     *datasource.SQLDB
}

var (
	_ datasource.ConnectionAdapter = (*Adapter)(nil)
	_ datasource.IndexDiscoverer   = (*Adapter)(nil)
)

// NewAdapter connects to MySQL within opts.ConnectTimeout.
func NewAdapter(ctx context.Context, cfg *Config, secrets models.SecretBundle, opts datasource.Options) (*Adapter, error) {
	opts = opts.ForProfile(models.ConnectionProfile{})

	connector, err := mysql.NewConnector(cfg.driverConfig(opts.ConnectTimeout, opts.QueryTimeout))
	if err != nil {
		return nil, apperrors.NewConfigurationError("mysql: invalid connection settings")
	}

	db, err := datasource.OpenSQL(ctx, connector, endpoint(cfg), secrets, opts, classify)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: db}, nil
}

func endpoint(cfg *Config) datasource.Endpoint {
	return datasource.Endpoint{Engine: models.EngineMySQL, Host: cfg.Host, Port: cfg.Port}
}

// classify maps MySQL server error numbers to error kinds.
func classify(err error) apperrors.Kind {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return apperrors.KindUnknown
	}
	switch myErr.Number {
	case 1045, 1044, 1698: // access denied for user / to database
		return apperrors.KindAuthentication
	case 1049: // unknown database
		return apperrors.KindConfiguration
	case 1040, 1203: // too many connections
		return apperrors.KindConnectivity
	}
	return apperrors.KindUnknown
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.db.Ping(ctx)
}

// CountRows runs an exact COUNT(*).
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	return a.db.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", qualifiedTableName(schemaName, tableName)))
}

// Close releases the connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func qualifiedTableName(schemaName, tableName string) string {
	if schemaName == "" {
		return quoteIdentifier(tableName)
	}
	return quoteIdentifier(schemaName) + "." + quoteIdentifier(tableName)
}
