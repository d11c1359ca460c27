package databricks

import (
	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

const defaultPort = 443

// Config addresses a Databricks SQL warehouse. Catalog is the Unity Catalog
// whose information_schema is read; Schema optionally narrows discovery.
type Config struct {
	ServerHostname string
	Port           int
	HTTPPath       string
	AccessToken    string
	Catalog        string
	Schema         string
}

// FromProfile builds a Config. Hostname and HTTP path may come from the profile
// or the secret bundle; the access token only from the bundle.
func FromProfile(p models.ConnectionProfile, secrets models.SecretBundle) (*Config, error) {
	cfg := &Config{
		ServerHostname: p.Host,
		Port:           p.Port,
		HTTPPath:       p.Option("http_path", "httpPath"),
		AccessToken:    secrets.Get("accessToken", "access_token", "token"),
		Catalog:        p.Database,
		Schema:         p.Schema,
	}
	if cfg.ServerHostname == "" {
		cfg.ServerHostname = secrets.Get("serverHostname", "server_hostname")
	}
	if cfg.HTTPPath == "" {
		cfg.HTTPPath = secrets.Get("httpPath", "http_path")
	}
	if cfg.Catalog == "" {
		cfg.Catalog = p.Option("catalog")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	switch {
	case cfg.ServerHostname == "":
		return nil, datasource.MissingField(models.EngineDatabricks, "serverHostname")
	case cfg.HTTPPath == "":
		return nil, datasource.MissingField(models.EngineDatabricks, "httpPath")
	case cfg.AccessToken == "":
		return nil, datasource.MissingField(models.EngineDatabricks, "accessToken")
	case cfg.Catalog == "":
		return nil, datasource.MissingField(models.EngineDatabricks, "catalog")
	}
	return cfg, nil
}
