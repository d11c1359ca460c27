package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the data-agent engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config
	// TrustProxy honors X-Forwarded-For when recording client addresses.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`

	// Database holds the metadata store (PostgreSQL) settings.
	Database DatabaseConfig `yaml:"database"`

	// Datasource holds limits applied to every external adapter call.
	Datasource DatasourceConfig `yaml:"datasource"`

	Vault VaultConfig `yaml:"vault"`

	LLM LLMConfig `yaml:"llm"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_dataagents"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DatasourceConfig holds limits for connections to external data sources.
type DatasourceConfig struct {
	// ConnectTimeoutSeconds bounds connection establishment and test queries.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"DATASOURCE_CONNECT_TIMEOUT_SECONDS" env-default:"15"`
	// QueryTimeoutSeconds bounds catalog queries and COUNT(*) fallbacks.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"DATASOURCE_QUERY_TIMEOUT_SECONDS" env-default:"60"`
	// ImportWorkers is the number of tables imported concurrently.
	ImportWorkers int `yaml:"import_workers" env:"DATASOURCE_IMPORT_WORKERS" env-default:"4"`
	// CountFallback enables COUNT(*) for selected tables whose estimate is unknown.
	CountFallback bool `yaml:"count_fallback" env:"DATASOURCE_COUNT_FALLBACK"`
}

// ConnectTimeout returns the connect timeout as a duration.
func (c DatasourceConfig) ConnectTimeout() time.Duration {
	return secondsOrDefault(c.ConnectTimeoutSeconds, 15)
}

// QueryTimeout returns the query timeout as a duration.
func (c DatasourceConfig) QueryTimeout() time.Duration {
	return secondsOrDefault(c.QueryTimeoutSeconds, 60)
}

// VaultConfig selects and configures the credential vault provider.
type VaultConfig struct {
	// Provider is one of: env, file, keyring, aws.
	Provider  string `yaml:"provider" env:"VAULT_PROVIDER" env-default:"env"`
	EnvPrefix string `yaml:"env_prefix" env:"VAULT_ENV_PREFIX" env-default:"DATA_AGENT_SECRET_"`

	FilePath string `yaml:"file_path" env:"VAULT_FILE_PATH" env-default:"secrets.vault"`
	FileKey  string `yaml:"-" env:"VAULT_FILE_KEY"` // Secret - not in YAML

	KeyringService string `yaml:"keyring_service" env:"VAULT_KEYRING_SERVICE" env-default:"ekaya-dataagents"`

	AWSRegion          string `yaml:"aws_region" env:"VAULT_AWS_REGION" env-default:"us-east-1"`
	AWSSecretPrefix    string `yaml:"aws_secret_prefix" env:"VAULT_AWS_SECRET_PREFIX" env-default:"dataagents/"`
	AWSEndpoint        string `yaml:"aws_endpoint" env:"VAULT_AWS_ENDPOINT" env-default:""`
	AWSAccessKeyID     string `yaml:"-" env:"VAULT_AWS_ACCESS_KEY_ID"`     // Secret - not in YAML
	AWSSecretAccessKey string `yaml:"-" env:"VAULT_AWS_SECRET_ACCESS_KEY"` // Secret - not in YAML
}

// LLMConfig configures the chat model used for relationship inference.
type LLMConfig struct {
	// Provider is one of: openai (any OpenAI-compatible endpoint), anthropic.
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL     string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"8192"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE"`
	// JSONMode is auto, on or off. auto enables it when the provider supports it.
	JSONMode string `yaml:"json_mode" env:"LLM_JSON_MODE" env-default:"auto"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// Secrets (PGPASSWORD, LLM_API_KEY, VAULT_FILE_KEY, VAULT_AWS_*) must come from
// environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	return LoadFrom("config.yaml", version)
}

// LoadFrom reads configuration from the given path. Use Load for the default location.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{Version: version}
	// cleanenv only applies env-default to zero values, which would overwrite
	// an explicit false or 0 from YAML; these fields are pre-filled instead.
	cfg.Datasource.CountFallback = true
	cfg.LLM.Temperature = 0.1

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Vault.Provider {
	case "env", "file", "keyring", "aws":
	default:
		return fmt.Errorf("vault.provider must be one of env, file, keyring, aws (got %q)", c.Vault.Provider)
	}
	if c.Vault.Provider == "file" && c.Vault.FileKey == "" {
		return fmt.Errorf("VAULT_FILE_KEY is required when vault.provider is file")
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic (got %q)", c.LLM.Provider)
	}
	switch c.LLM.JSONMode {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("llm.json_mode must be auto, on or off (got %q)", c.LLM.JSONMode)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.Datasource.ImportWorkers <= 0 {
		c.Datasource.ImportWorkers = 1
	}
	return nil
}

// ConnectionString returns a PostgreSQL URL for the metadata store.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

func secondsOrDefault(seconds, def int) time.Duration {
	if seconds <= 0 {
		seconds = def
	}
	return time.Duration(seconds) * time.Second
}
