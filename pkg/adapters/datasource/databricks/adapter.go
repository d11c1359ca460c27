package databricks

import (
	"context"
	"fmt"
	"strings"

	dbsql "github.com/databricks/databricks-sql-go"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Adapter reaches a Databricks SQL warehouse over HTTPS with a bearer token.
type Adapter struct {
	config *Config
	db     *datasource.SQLDB
}

var _ datasource.ConnectionAdapter = (*Adapter)(nil)

// NewAdapter opens a session against the warehouse within opts.ConnectTimeout.
// A stopped warehouse is started by the first query, which can take longer than
// the connect timeout; callers see a connectivity timeout in that case.
func NewAdapter(ctx context.Context, cfg *Config, secrets models.SecretBundle, opts datasource.Options) (*Adapter, error) {
	opts = opts.ForProfile(models.ConnectionProfile{})

	connector, err := dbsql.NewConnector(cfg.connectorOptions(opts)...)
	if err != nil {
		return nil, apperrors.NewConfigurationError("databricks: invalid connection settings")
	}

	db, err := datasource.OpenSQL(ctx, connector, endpoint(cfg), secrets, opts, classify)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: db}, nil
}

func (c *Config) connectorOptions(opts datasource.Options) []dbsql.ConnOption {
	return []dbsql.ConnOption{
		dbsql.WithServerHostname(c.ServerHostname),
		dbsql.WithPort(c.Port),
		dbsql.WithHTTPPath(c.HTTPPath),
		dbsql.WithAccessToken(c.AccessToken),
		dbsql.WithInitialNamespace(c.Catalog, c.Schema),
		dbsql.WithTimeout(opts.QueryTimeout),
		dbsql.WithUserAgentEntry("ekaya-dataagents"),
	}
}

func endpoint(cfg *Config) datasource.Endpoint {
	return datasource.Endpoint{Engine: models.EngineDatabricks, Host: cfg.ServerHostname, Port: cfg.Port}
}

// classify reads the error class names Databricks puts in its messages.
func classify(err error) apperrors.Kind {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "PERMISSION_DENIED"), strings.Contains(msg, "INVALID_TOKEN"),
		strings.Contains(msg, "Invalid access token"):
		return apperrors.KindAuthentication
	case strings.Contains(msg, "NO_SUCH_CATALOG_EXCEPTION"), strings.Contains(msg, "SCHEMA_NOT_FOUND"),
		strings.Contains(msg, "CATALOG_NOT_FOUND"):
		return apperrors.KindConfiguration
	}
	return apperrors.KindUnknown
}

// quoteIdentifier quotes a Spark SQL identifier with backticks.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// TestConnection runs SELECT 1 on the warehouse.
func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.db.Ping(ctx)
}

// CountRows runs an exact COUNT(*) against catalog.schema.table.
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	if schemaName == "" {
		schemaName = a.config.Schema
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s.%s",
		quoteIdentifier(a.config.Catalog), quoteIdentifier(schemaName), quoteIdentifier(tableName))
	return a.db.Count(ctx, query)
}

// Close ends the session.
func (a *Adapter) Close() error {
	return a.db.Close()
}
