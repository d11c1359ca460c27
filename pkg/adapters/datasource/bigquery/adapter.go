package bigquery

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// Adapter reads one dataset's catalog through the BigQuery API.
type Adapter struct {
	config   *Config
	client   catalogClient
	endpoint datasource.Endpoint
	secrets  models.SecretBundle
	opts     datasource.Options
}

var _ datasource.ConnectionAdapter = (*Adapter)(nil)

// NewAdapter creates an API client and checks the dataset is visible within
// opts.ConnectTimeout.
func NewAdapter(ctx context.Context, cfg *Config, secrets models.SecretBundle, opts datasource.Options) (*Adapter, error) {
	opts = opts.ForProfile(models.ConnectionProfile{})
	ep := endpoint(cfg)
	ep.Timeout = opts.ConnectTimeout

	client, err := newBigQueryClient(ctx, cfg)
	if err != nil {
		return nil, ep.Classify(err, apperrors.KindConfiguration, secrets)
	}

	a := &Adapter{config: cfg, client: client, endpoint: ep, secrets: secrets, opts: opts}
	if err := a.TestConnection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return a, nil
}

func endpoint(cfg *Config) datasource.Endpoint {
	return datasource.Endpoint{Engine: models.EngineBigQuery, Host: cfg.ProjectID + "." + cfg.Dataset}
}

// classify maps Google API status codes to error kinds.
func classify(err error) apperrors.Kind {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.KindAuthentication
		case http.StatusNotFound, http.StatusBadRequest:
			return apperrors.KindConfiguration
		}
		return apperrors.KindConnectivity
	}
	if strings.Contains(err.Error(), "credentials") {
		return apperrors.KindAuthentication
	}
	return apperrors.KindUnknown
}

func (a *Adapter) fail(err error) error {
	return a.endpoint.Classify(err, classify(err), a.secrets)
}

// TestConnection fetches the dataset metadata.
func (a *Adapter) TestConnection(ctx context.Context) error {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.ConnectTimeout)
	defer cancel()

	if err := a.client.DatasetExists(ctx); err != nil {
		return a.fail(err)
	}
	return nil
}

// CountRows runs SELECT COUNT(*) as a query job.
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	ctx, cancel := datasource.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	n, err := a.client.CountRows(ctx, tableName)
	if err != nil {
		return 0, a.fail(err)
	}
	return n, nil
}

// Close releases the API client.
func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}
