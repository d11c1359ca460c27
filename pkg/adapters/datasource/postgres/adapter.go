package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Adapter provides PostgreSQL connectivity over a single private connection.
type Adapter struct {
	config   *Config
	conn     *pgx.Conn
	endpoint datasource.Endpoint
	secrets  models.SecretBundle
	opts     datasource.Options
	logger   *zap.Logger
}

var (
	_ datasource.ConnectionAdapter = (*Adapter)(nil)
	_ datasource.IndexDiscoverer   = (*Adapter)(nil)
)

// NewAdapter connects to PostgreSQL. The connection attempt is bounded by
// opts.ConnectTimeout; failures are classified and never include credentials.
func NewAdapter(ctx context.Context, cfg *Config, secrets models.SecretBundle, opts datasource.Options) (*Adapter, error) {
	opts = opts.ForProfile(models.ConnectionProfile{})
	endpoint := datasource.Endpoint{Engine: models.EnginePostgres, Host: cfg.Host, Port: cfg.Port, Timeout: opts.ConnectTimeout}

	connCfg, err := pgx.ParseConfig(cfg.connectionString())
	if err != nil {
		return nil, apperrors.NewConfigurationError("postgres: invalid connection settings")
	}
	connCfg.ConnectTimeout = opts.ConnectTimeout

	connectCtx, cancel := datasource.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(connectCtx, connCfg)
	if err != nil {
		return nil, endpoint.Classify(err, classify(err), secrets)
	}

	return &Adapter{
		config:   cfg,
		conn:     conn,
		endpoint: endpoint,
		secrets:  secrets,
		opts:     opts,
		logger:   opts.Logger,
	}, nil
}

// classify maps PostgreSQL SQLSTATE codes to error kinds.
func classify(err error) apperrors.Kind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return apperrors.KindUnknown
	}
	switch pgErr.Code {
	case "28P01", "28000": // invalid_password, invalid_authorization_specification
		return apperrors.KindAuthentication
	case "42501": // insufficient_privilege
		return apperrors.KindAuthentication
	case "3D000", "3F000": // invalid_catalog_name, invalid_schema_name
		return apperrors.KindConfiguration
	case "53300", "57P03": // too_many_connections, cannot_connect_now
		return apperrors.KindConnectivity
	}
	return apperrors.KindUnknown
}

func (a *Adapter) fail(err error) error {
	return a.endpoint.Classify(err, classify(err), a.secrets)
}

// TestConnection verifies the database is reachable with valid credentials and
// that the session landed in the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.ConnectTimeout)
	defer cancel()

	var result int
	if err := a.conn.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return a.fail(err)
	}

	var currentDB string
	if err := a.conn.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return a.fail(err)
	}
	if !strings.EqualFold(currentDB, a.config.Database) {
		return apperrors.NewConfigurationError("postgres: connected to database %q, expected %q", currentDB, a.config.Database)
	}
	return nil
}

// CountRows runs an exact COUNT(*) bounded by the query timeout.
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualifiedTableName(schemaName, tableName))
	if err := a.conn.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, a.fail(err)
	}
	return count, nil
}

// Close releases the connection.
func (a *Adapter) Close() error {
	if a.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.ConnectTimeout)
	defer cancel()
	err := a.conn.Close(ctx)
	a.conn = nil
	return err
}
