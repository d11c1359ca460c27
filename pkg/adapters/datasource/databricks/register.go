//go:build !no_databricks

package databricks

import (
	"context"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Engine:       models.EngineDatabricks,
			DisplayName:  "Databricks",
			Description:  "Connect to a Databricks SQL warehouse with a personal access token",
			SecretFields: []string{"serverHostname", "httpPath", "accessToken"},
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
