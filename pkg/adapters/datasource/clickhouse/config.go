package clickhouse

import (
	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

const (
	defaultPort    = 9000
	defaultTLSPort = 9440
)

// Config contains ClickHouse native-protocol connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Secure   bool
	// SkipVerify disables certificate verification when Secure is set.
	SkipVerify bool
}

// FromProfile builds a Config from an environment profile and its secret bundle.
func FromProfile(p models.ConnectionProfile, secrets models.SecretBundle) (*Config, error) {
	cfg := &Config{
		Host:     p.Host,
		Port:     p.Port,
		User:     secrets.Username(),
		Password: secrets.Password(),
		Database: p.Database,
	}
	if cfg.User == "" {
		cfg.User = "default"
	}

	switch p.TLSMode {
	case "require", "verify-ca", "verify-full", "true":
		cfg.Secure = true
	case "skip-verify":
		cfg.Secure = true
		cfg.SkipVerify = true
	}
	if v, ok := p.Options["secure"]; ok {
		if b, ok := jsonutil.BoolFromAny(v); ok {
			cfg.Secure = b
		}
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
		if cfg.Secure {
			cfg.Port = defaultTLSPort
		}
	}
	if cfg.Host == "" {
		return nil, datasource.MissingField(models.EngineClickHouse, "host")
	}
	return cfg, nil
}
