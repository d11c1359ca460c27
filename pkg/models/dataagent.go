package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/jsonutil"
)

// Engine identifies the kind of external database a data agent talks to.
type Engine string

const (
	EnginePostgres   Engine = "postgres"
	EngineMySQL      Engine = "mysql"
	EngineMSSQL      Engine = "mssql"
	EngineClickHouse Engine = "clickhouse"
	EngineSnowflake  Engine = "snowflake"
	EngineBigQuery   Engine = "bigquery"
	EngineDatabricks Engine = "databricks"
)

// EngineFamily groups engines by how they are reached and what their catalog looks like.
type EngineFamily string

const (
	FamilyRelational  EngineFamily = "relational"
	FamilyColumnStore EngineFamily = "column_store"
	FamilyWarehouse   EngineFamily = "warehouse"
	FamilyLakehouse   EngineFamily = "lakehouse"
)

// Family returns the engine's family, or "" for unknown engines.
func (e Engine) Family() EngineFamily {
	switch e {
	case EnginePostgres, EngineMySQL, EngineMSSQL:
		return FamilyRelational
	case EngineClickHouse:
		return FamilyColumnStore
	case EngineSnowflake, EngineBigQuery:
		return FamilyWarehouse
	case EngineDatabricks:
		return FamilyLakehouse
	}
	return ""
}

// ParseEngine normalizes user input ("PostgreSQL", "sqlserver") to an Engine tag.
// Unknown names are returned lower-cased and unchanged so callers can report them.
func ParseEngine(s string) Engine {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "postgresql", "pg":
		return EnginePostgres
	case "sqlserver", "sql_server":
		return EngineMSSQL
	default:
		return Engine(name)
	}
}

// DataAgent is a registered external data source.
type DataAgent struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Engine    Engine    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Environment is one deployment (dev, prod, ...) of a data agent. VaultKey names the
// secret bundle in the credential vault; the profile itself never holds secrets.
type Environment struct {
	ID          uuid.UUID         `json:"id"`
	DataAgentID uuid.UUID         `json:"data_agent_id"`
	Name        string            `json:"name"`
	Profile     ConnectionProfile `json:"profile"`
	VaultKey    string            `json:"vault_key,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ConnectionProfile holds the non-secret connection parameters of an environment.
// Engine-specific settings (account, warehouse, httpPath, dataset, ...) live in Options.
type ConnectionProfile struct {
	Host                  string         `json:"host,omitempty"`
	Port                  int            `json:"port,omitempty"`
	Database              string         `json:"database,omitempty"`
	Schema                string         `json:"schema,omitempty"`
	TLSMode               string         `json:"tls_mode,omitempty"`
	ConnectTimeoutSeconds int            `json:"connect_timeout_seconds,omitempty"`
	QueryTimeoutSeconds   int            `json:"query_timeout_seconds,omitempty"`
	Options               map[string]any `json:"options,omitempty"`
}

var profileKeys = map[string]bool{
	"host": true, "port": true, "database": true, "schema": true,
	"tls_mode": true, "ssl_mode": true, "sslmode": true,
	"connect_timeout_seconds": true, "query_timeout_seconds": true,
}

// ProfileFromMap builds a profile from a loosely typed map, as received from an API
// caller. Numbers may arrive as strings or floats. Unrecognized keys become Options.
func ProfileFromMap(m map[string]any) ConnectionProfile {
	p := ConnectionProfile{
		Host:     jsonutil.StringFromAny(m["host"]),
		Database: jsonutil.StringFromAny(m["database"]),
		Schema:   jsonutil.StringFromAny(m["schema"]),
	}
	if port, ok := jsonutil.IntFromAny(m["port"]); ok {
		p.Port = port
	}
	for _, key := range []string{"tls_mode", "ssl_mode", "sslmode"} {
		if v := jsonutil.StringFromAny(m[key]); v != "" {
			p.TLSMode = v
			break
		}
	}
	if n, ok := jsonutil.IntFromAny(m["connect_timeout_seconds"]); ok {
		p.ConnectTimeoutSeconds = n
	}
	if n, ok := jsonutil.IntFromAny(m["query_timeout_seconds"]); ok {
		p.QueryTimeoutSeconds = n
	}
	for k, v := range m {
		if profileKeys[k] {
			continue
		}
		if p.Options == nil {
			p.Options = make(map[string]any)
		}
		p.Options[k] = v
	}
	return p
}

// Option returns an engine-specific option as a string, or "" when absent.
// Multiple spellings may be given (e.g. "http_path", "httpPath"); the first present wins.
func (p ConnectionProfile) Option(keys ...string) string {
	for _, k := range keys {
		if v, ok := p.Options[k]; ok {
			if s := jsonutil.StringFromAny(v); s != "" {
				return s
			}
		}
	}
	return ""
}
