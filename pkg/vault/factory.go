package vault

import (
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
)

// NewProvider selects the provider named in cfg.Provider.
func NewProvider(cfg config.VaultConfig) (Provider, error) {
	switch cfg.Provider {
	case "env", "":
		return NewEnvProvider(cfg.EnvPrefix), nil
	case "file":
		return NewFileProvider(cfg.FilePath, cfg.FileKey), nil
	case "keyring":
		return NewKeyringProvider(cfg.KeyringService), nil
	case "aws":
		return NewAWSProvider(AWSOptions{
			Region:          cfg.AWSRegion,
			SecretPrefix:    cfg.AWSSecretPrefix,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}), nil
	default:
		return nil, apperrors.NewConfigurationError("unsupported vault provider: %s", cfg.Provider)
	}
}
