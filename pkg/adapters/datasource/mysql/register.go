//go:build !no_mysql

package mysql

import (
	"context"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Engine:       models.EngineMySQL,
			DisplayName:  "MySQL",
			Description:  "Connect to MySQL 5.7+, MariaDB, Aurora MySQL",
			SecretFields: []string{"username", "password"},
		},
		Factory: func(ctx context.Context, profile models.ConnectionProfile, secrets models.SecretBundle, opts datasource.Options) (datasource.ConnectionAdapter, error) {
			cfg, err := FromProfile(profile, secrets)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, secrets, opts)
		},
	})
}
