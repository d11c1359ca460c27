package mssql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	mssqldb "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/azuread"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Adapter provides SQL Server connectivity over a single private connection.
// Supports SQL authentication and Azure AD service principals.
type Adapter struct {
	config *Config
	db     *datasource.SQLDB
}

var (
	_ datasource.ConnectionAdapter = (*Adapter)(nil)
	_ datasource.IndexDiscoverer   = (*Adapter)(nil)
)

// NewAdapter connects to SQL Server within opts.ConnectTimeout.
func NewAdapter(ctx context.Context, cfg *Config, secrets models.SecretBundle, opts datasource.Options) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = opts.ForProfile(models.ConnectionProfile{})

	dsn := cfg.connectionString(int(opts.ConnectTimeout.Seconds()))

	var (
		connector driver.Connector
		err       error
	)
	switch cfg.AuthMethod {
	case AuthServicePrincipal:
		connector, err = azuread.NewConnector(dsn)
	default:
		connector, err = mssqldb.NewConnector(dsn)
	}
	if err != nil {
		return nil, apperrors.NewConfigurationError("mssql: invalid connection settings")
	}

	db, err := datasource.OpenSQL(ctx, connector, endpoint(cfg), secrets, opts, classify)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: db}, nil
}

func endpoint(cfg *Config) datasource.Endpoint {
	return datasource.Endpoint{Engine: models.EngineMSSQL, Host: cfg.Host, Port: cfg.Port}
}

// classify maps SQL Server error numbers to error kinds.
func classify(err error) apperrors.Kind {
	var msErr mssqldb.Error
	if !errors.As(err, &msErr) {
		return apperrors.KindUnknown
	}
	switch msErr.Number {
	case 18456, 18452, 18486, 18488: // login failed, untrusted domain, locked, password expired
		return apperrors.KindAuthentication
	case 4060: // cannot open database requested by the login
		return apperrors.KindConfiguration
	case 229, 262, 916: // permission denied
		return apperrors.KindAuthentication
	}
	return apperrors.KindUnknown
}

// TestConnection verifies the database is reachable with valid credentials and
// that the session landed in the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.Ping(ctx); err != nil {
		return err
	}

	ctx, cancel := datasource.WithTimeout(ctx, a.db.Opts.ConnectTimeout)
	defer cancel()

	var currentDB string
	if err := a.db.DB.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return a.db.Fail(err)
	}
	if currentDB != a.config.Database {
		return apperrors.NewConfigurationError("mssql: connected to database %q, expected %q", currentDB, a.config.Database)
	}
	return nil
}

// CountRows runs an exact COUNT_BIG(*).
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	return a.db.Count(ctx, fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s", buildFullyQualifiedName(schemaName, tableName)))
}

// Close releases the connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}
