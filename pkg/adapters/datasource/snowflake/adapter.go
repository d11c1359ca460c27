package snowflake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Adapter talks to a Snowflake warehouse through gosnowflake.
type Adapter struct {
	config *Config
	db     *datasource.SQLDB
}

var _ datasource.ConnectionAdapter = (*Adapter)(nil)

// NewAdapter logs in and pings within opts.ConnectTimeout.
func NewAdapter(ctx context.Context, cfg *Config, secrets models.SecretBundle, opts datasource.Options) (*Adapter, error) {
	opts = opts.ForProfile(models.ConnectionProfile{})

	connector := gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, *cfg.driverConfig(opts.ConnectTimeout, opts.QueryTimeout))
	db, err := datasource.OpenSQL(ctx, connector, endpoint(cfg), secrets, opts, classify)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: db}, nil
}

func endpoint(cfg *Config) datasource.Endpoint {
	return datasource.Endpoint{Engine: models.EngineSnowflake, Host: cfg.Account + ".snowflakecomputing.com", Port: 443}
}

// classify maps Snowflake error numbers to error kinds.
func classify(err error) apperrors.Kind {
	var sfErr *gosnowflake.SnowflakeError
	if !errors.As(err, &sfErr) {
		return apperrors.KindUnknown
	}
	switch sfErr.Number {
	case 390100, 390101, 390102, 390144: // incorrect credentials, user locked/disabled, invalid JWT
		return apperrors.KindAuthentication
	case 390201, 2003, 2043: // database/object does not exist or not authorized
		return apperrors.KindConfiguration
	case 390404: // account not found
		return apperrors.KindConfiguration
	}
	return apperrors.KindUnknown
}

// quoteIdentifier double-quotes an identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TestConnection runs SELECT 1 in the configured warehouse.
func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.db.Ping(ctx)
}

// CountRows runs an exact COUNT(*). Catalog names come back in their stored
// case, so they are quoted as-is.
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	if schemaName == "" {
		schemaName = strings.ToUpper(a.config.Schema)
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s.%s",
		quoteIdentifier(strings.ToUpper(a.config.Database)), quoteIdentifier(schemaName), quoteIdentifier(tableName))
	return a.db.Count(ctx, query)
}

// Close releases the session.
func (a *Adapter) Close() error {
	return a.db.Close()
}
