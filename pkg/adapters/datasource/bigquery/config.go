package bigquery

import (
	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Config addresses one BigQuery dataset. Exactly one of CredentialsJSON and
// KeyFilePath is used; with neither, application default credentials apply.
type Config struct {
	ProjectID       string
	Dataset         string
	Location        string
	CredentialsJSON string
	KeyFilePath     string
}

// FromProfile builds a Config. The dataset is the profile's database (or the
// "dataset" option); the project may come from the profile or the bundle.
func FromProfile(p models.ConnectionProfile, secrets models.SecretBundle) (*Config, error) {
	cfg := &Config{
		ProjectID:       p.Option("project_id", "projectId"),
		Dataset:         p.Database,
		Location:        p.Option("location"),
		CredentialsJSON: secrets.Get("serviceAccountJson", "service_account_json", "credentials_json"),
		KeyFilePath:     secrets.Get("keyFilePath", "key_file_path"),
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = secrets.Get("projectId", "project_id")
	}
	if cfg.Dataset == "" {
		cfg.Dataset = p.Option("dataset")
	}

	switch {
	case cfg.ProjectID == "":
		return nil, datasource.MissingField(models.EngineBigQuery, "projectId")
	case cfg.Dataset == "":
		return nil, datasource.MissingField(models.EngineBigQuery, "dataset")
	}
	return cfg, nil
}
