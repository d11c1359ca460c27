package postgres

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

const (
	defaultPort    = 5432
	defaultSSLMode = "require"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// FromProfile builds a Config from an environment profile and its secret bundle.
func FromProfile(p models.ConnectionProfile, secrets models.SecretBundle) (*Config, error) {
	cfg := &Config{
		Host:     p.Host,
		Port:     p.Port,
		User:     secrets.Username(),
		Password: secrets.Password(),
		Database: p.Database,
		SSLMode:  p.TLSMode,
	}
	if cfg.Database == "" {
		// Support legacy "name" field
		cfg.Database = p.Option("name")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = defaultSSLMode
	}

	switch {
	case cfg.Host == "":
		return nil, datasource.MissingField(models.EnginePostgres, "host")
	case cfg.User == "":
		return nil, datasource.MissingField(models.EnginePostgres, "username")
	case cfg.Database == "":
		return nil, datasource.MissingField(models.EnginePostgres, "database")
	}
	return cfg, nil
}

// connectionString builds a PostgreSQL URL. User and password go through
// url.UserPassword so characters such as @, /, # and spaces survive parsing.
// When running in Docker, localhost is resolved to host.docker.internal.
func (c *Config) connectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
