package mysql

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

const defaultPort = 3306

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// TLSMode is passed to the driver's tls parameter: "true", "false",
	// "skip-verify" or "preferred".
	TLSMode string
}

// FromProfile builds a Config from an environment profile and its secret bundle.
func FromProfile(p models.ConnectionProfile, secrets models.SecretBundle) (*Config, error) {
	cfg := &Config{
		Host:     p.Host,
		Port:     p.Port,
		User:     secrets.Username(),
		Password: secrets.Password(),
		Database: p.Database,
		TLSMode:  tlsMode(p.TLSMode),
	}
	if cfg.Database == "" {
		cfg.Database = p.Option("name")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	switch {
	case cfg.Host == "":
		return nil, datasource.MissingField(models.EngineMySQL, "host")
	case cfg.User == "":
		return nil, datasource.MissingField(models.EngineMySQL, "username")
	case cfg.Database == "":
		return nil, datasource.MissingField(models.EngineMySQL, "database")
	}
	return cfg, nil
}

// tlsMode accepts the postgres-style sslmode names callers tend to send.
func tlsMode(mode string) string {
	switch mode {
	case "", "preferred", "prefer":
		return "preferred"
	case "disable", "false":
		return "false"
	case "require", "verify-full", "verify-ca", "true":
		return "true"
	case "skip-verify":
		return "skip-verify"
	}
	return mode
}

// driverConfig builds the driver configuration. Credentials stay in the struct
// and are never formatted into a string the adapter logs.
func (c *Config) driverConfig(connectTimeout, queryTimeout time.Duration) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.TLSConfig = c.TLSMode
	mc.Timeout = connectTimeout
	mc.ReadTimeout = queryTimeout
	mc.ParseTime = true
	return mc
}
