package mssql

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

const (
	defaultPort = 1433

	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod is "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
}

// FromProfile builds a Config from an environment profile and its secret bundle.
// The auth method is auto-detected from the bundle when the profile does not set
// auth_method: a client_id selects service principal, otherwise SQL auth.
func FromProfile(p models.ConnectionProfile, secrets models.SecretBundle) (*Config, error) {
	cfg := &Config{
		Host:         p.Host,
		Port:         p.Port,
		Database:     p.Database,
		AuthMethod:   p.Option("auth_method"),
		Username:     secrets.Username(),
		Password:     secrets.Password(),
		TenantID:     secrets.Get("tenant_id", "tenantId"),
		ClientID:     secrets.Get("client_id", "clientId"),
		ClientSecret: secrets.Get("client_secret", "clientSecret"),
		Encrypt:      true,
	}
	if cfg.Database == "" {
		cfg.Database = p.Option("name")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	switch p.TLSMode {
	case "disable", "false":
		cfg.Encrypt = false
	}
	if v, ok := p.Options["encrypt"]; ok {
		if b, ok := jsonutil.BoolFromAny(v); ok {
			cfg.Encrypt = b
		} else if jsonutil.StringFromAny(v) == "strict" {
			cfg.Encrypt = true
		}
	}
	if v, ok := p.Options["trust_server_certificate"]; ok {
		cfg.TrustServerCertificate, _ = jsonutil.BoolFromAny(v)
	}

	if cfg.AuthMethod == "" {
		if cfg.ClientID != "" {
			cfg.AuthMethod = AuthServicePrincipal
		} else {
			cfg.AuthMethod = AuthSQL
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return datasource.MissingField(models.EngineMSSQL, "host")
	}
	if c.Database == "" {
		return datasource.MissingField(models.EngineMSSQL, "database")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return datasource.MissingField(models.EngineMSSQL, fmt.Sprintf("valid port (got %d)", c.Port))
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return datasource.MissingField(models.EngineMSSQL, "username")
		}
	case AuthServicePrincipal:
		if c.TenantID == "" {
			return datasource.MissingField(models.EngineMSSQL, "tenant_id")
		}
		if c.ClientID == "" {
			return datasource.MissingField(models.EngineMSSQL, "client_id")
		}
		if c.ClientSecret == "" {
			return datasource.MissingField(models.EngineMSSQL, "client_secret")
		}
	default:
		return datasource.MissingField(models.EngineMSSQL, "auth_method sql or service_principal")
	}
	return nil
}

// connectionString builds a sqlserver:// URL. For service principal auth the
// client credentials travel as fedauth query parameters.
func (c *Config) connectionString(connectTimeoutSeconds int) string {
	query := url.Values{}
	query.Add("database", c.Database)
	query.Add("encrypt", fmt.Sprintf("%t", c.Encrypt))
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if connectTimeoutSeconds > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", connectTimeoutSeconds))
	}

	u := url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", config.ResolveHostForDocker(c.Host), c.Port),
	}

	switch c.AuthMethod {
	case AuthServicePrincipal:
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", c.ClientID+"@"+c.TenantID)
		query.Add("password", c.ClientSecret)
	default:
		u.User = url.UserPassword(c.Username, c.Password)
	}

	u.RawQuery = query.Encode()
	return u.String()
}
