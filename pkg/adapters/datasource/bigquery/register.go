//go:build !no_bigquery

package bigquery

import (
	"context"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Engine:       models.EngineBigQuery,
			DisplayName:  "Google BigQuery",
			Description:  "Connect to a BigQuery dataset with a service account",
			SecretFields: []string{"projectId", "serviceAccountJson", "keyFilePath"},
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
