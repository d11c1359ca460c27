package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// KindFunc maps a driver error to a classification, or KindUnknown to fall
// back to message heuristics.
type KindFunc func(error) apperrors.Kind

// SQLDB is a database/sql handle restricted to one connection, shared by the
// engines reached through a database/sql driver (mysql, mssql, snowflake, databricks).
type SQLDB struct {
	DB       *sql.DB
	Endpoint Endpoint
	Secrets  models.SecretBundle
	Opts     Options
	Kind     KindFunc
}

// OpenSQL opens a single-connection handle and pings it within opts.ConnectTimeout.
// The handle is closed when the ping fails.
func OpenSQL(ctx context.Context, connector driver.Connector, endpoint Endpoint, secrets models.SecretBundle, opts Options, kind KindFunc) (*SQLDB, error) {
	db := sql.OpenDB(connector)
	return NewSQLDB(ctx, db, endpoint, secrets, opts, kind)
}

// NewSQLDB wraps an already opened handle, limits it to one connection and
// pings it. Tests pass a go-sqlmock handle here.
func NewSQLDB(ctx context.Context, db *sql.DB, endpoint Endpoint, secrets models.SecretBundle, opts Options, kind KindFunc) (*SQLDB, error) {
	opts = opts.ForProfile(models.ConnectionProfile{})
	if kind == nil {
		kind = func(error) apperrors.Kind { return apperrors.KindUnknown }
	}
	endpoint.Timeout = opts.ConnectTimeout

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLDB{DB: db, Endpoint: endpoint, Secrets: secrets, Opts: opts, Kind: kind}

	pingCtx, cancel := WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, s.Fail(err)
	}
	return s, nil
}

// Fail classifies err against this endpoint.
func (s *SQLDB) Fail(err error) error {
	return s.Endpoint.Classify(err, s.Kind(err), s.Secrets)
}

// Ping runs SELECT 1 within the connect timeout.
func (s *SQLDB) Ping(ctx context.Context) error {
	ctx, cancel := WithTimeout(ctx, s.Opts.ConnectTimeout)
	defer cancel()

	var one int
	if err := s.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return s.Fail(err)
	}
	return nil
}

// Count runs query, which must return a single integer, within the query timeout.
func (s *SQLDB) Count(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := WithTimeout(ctx, s.Opts.QueryTimeout)
	defer cancel()

	var count int64
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, s.Fail(err)
	}
	return count, nil
}

// Query runs query within the query timeout and calls scan for every row.
func (s *SQLDB) Query(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	ctx, cancel := WithTimeout(ctx, s.Opts.QueryTimeout)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return s.Fail(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return s.Fail(err)
		}
	}
	if err := rows.Err(); err != nil {
		return s.Fail(err)
	}
	return nil
}

// Close releases the handle.
func (s *SQLDB) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	err := s.DB.Close()
	s.DB = nil
	return err
}
