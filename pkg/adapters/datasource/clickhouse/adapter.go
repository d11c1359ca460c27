package clickhouse

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Adapter talks to ClickHouse over the native protocol through the
// database/sql interface of clickhouse-go.
type Adapter struct {
	config *Config
	db     *datasource.SQLDB
}

var _ datasource.ConnectionAdapter = (*Adapter)(nil)

// NewAdapter opens a single connection and pings it within opts.ConnectTimeout.
func NewAdapter(ctx context.Context, cfg *Config, secrets models.SecretBundle, opts datasource.Options) (*Adapter, error) {
	opts = opts.ForProfile(models.ConnectionProfile{})

	db := clickhouse.OpenDB(cfg.options(opts))
	sdb, err := datasource.NewSQLDB(ctx, db, endpoint(cfg), secrets, opts, classify)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: sdb}, nil
}

func (c *Config) options(opts datasource.Options) *clickhouse.Options {
	o := &clickhouse.Options{
		Addr: []string{net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))},
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.User,
			Password: c.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(opts.QueryTimeout.Seconds()),
		},
		DialTimeout:  opts.ConnectTimeout,
		ReadTimeout:  opts.QueryTimeout,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	if c.Secure {
		o.TLS = &tls.Config{InsecureSkipVerify: c.SkipVerify, ServerName: c.Host}
	}
	return o
}

func endpoint(cfg *Config) datasource.Endpoint {
	return datasource.Endpoint{Engine: models.EngineClickHouse, Host: cfg.Host, Port: cfg.Port}
}

// classify maps ClickHouse exception codes to error kinds.
func classify(err error) apperrors.Kind {
	var ex *clickhouse.Exception
	if !errors.As(err, &ex) {
		return apperrors.KindUnknown
	}
	switch ex.Code {
	case 516, 192, 194: // AUTHENTICATION_FAILED, UNKNOWN_USER, REQUIRED_PASSWORD
		return apperrors.KindAuthentication
	case 497: // ACCESS_DENIED
		return apperrors.KindAuthentication
	case 81: // UNKNOWN_DATABASE
		return apperrors.KindConfiguration
	}
	return apperrors.KindUnknown
}

// quoteIdentifier quotes a ClickHouse identifier with backticks.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

// TestConnection runs SELECT 1.
func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.db.Ping(ctx)
}

// CountRows runs an exact count().
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	if schemaName == "" {
		schemaName = a.config.Database
	}
	query := fmt.Sprintf("SELECT count() FROM %s.%s", quoteIdentifier(schemaName), quoteIdentifier(tableName))
	return a.db.Count(ctx, query)
}

// Close releases the connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}
