package snowflake

import (
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Config contains Snowflake connection options for username/password auth.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// FromProfile builds a Config. The account identifier comes from the "account"
// option, or from a host of the form <account>.snowflakecomputing.com.
func FromProfile(p models.ConnectionProfile, secrets models.SecretBundle) (*Config, error) {
	cfg := &Config{
		Account:   p.Option("account"),
		User:      secrets.Username(),
		Password:  secrets.Password(),
		Database:  p.Database,
		Schema:    p.Schema,
		Warehouse: p.Option("warehouse"),
		Role:      p.Option("role"),
	}
	if cfg.Account == "" && p.Host != "" {
		cfg.Account = strings.TrimSuffix(strings.ToLower(p.Host), ".snowflakecomputing.com")
	}

	switch {
	case cfg.Account == "":
		return nil, datasource.MissingField(models.EngineSnowflake, "account")
	case cfg.Database == "":
		return nil, datasource.MissingField(models.EngineSnowflake, "database")
	case cfg.User == "":
		return nil, datasource.MissingField(models.EngineSnowflake, "username")
	case cfg.Password == "":
		return nil, datasource.MissingField(models.EngineSnowflake, "password")
	}
	return cfg, nil
}

// driverConfig builds the gosnowflake config. Database and schema identifiers are
// sent unquoted; the catalog queries compare against the upper-cased form.
func (c *Config) driverConfig(connectTimeout, queryTimeout time.Duration) *gosnowflake.Config {
	return &gosnowflake.Config{
		Account:        c.Account,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		Schema:         c.Schema,
		Warehouse:      c.Warehouse,
		Role:           c.Role,
		Authenticator:  gosnowflake.AuthTypeSnowflake,
		LoginTimeout:   connectTimeout,
		RequestTimeout: queryTimeout,
		Application:    "ekaya-dataagents",
	}
}
