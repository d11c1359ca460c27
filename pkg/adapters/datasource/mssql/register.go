//go:build !no_mssql

package mssql

import (
	"context"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Engine:       models.EngineMSSQL,
			DisplayName:  "Microsoft SQL Server",
			Description:  "Connect to SQL Server 2019+, Azure SQL Database",
			SecretFields: []string{"username", "password", "tenant_id", "client_id", "client_secret"},
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
