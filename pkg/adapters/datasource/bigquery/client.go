package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// catalogClient is the slice of the BigQuery API the adapter needs.
type catalogClient interface {
	DatasetExists(ctx context.Context) error
	TableIDs(ctx context.Context) ([]string, error)
	TableMetadata(ctx context.Context, tableID string) (*bigquery.TableMetadata, error)
	CountRows(ctx context.Context, tableID string) (int64, error)
	Close() error
}

type bigQueryClient struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	config  *Config
}

func newBigQueryClient(ctx context.Context, cfg *Config) (*bigQueryClient, error) {
	var opts []option.ClientOption
	if cfg.KeyFilePath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.KeyFilePath))
	} else if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}
	return &bigQueryClient{client: client, dataset: client.Dataset(cfg.Dataset), config: cfg}, nil
}

func (c *bigQueryClient) DatasetExists(ctx context.Context) error {
	_, err := c.dataset.Metadata(ctx)
	return err
}

func (c *bigQueryClient) TableIDs(ctx context.Context) ([]string, error) {
	var ids []string
	it := c.dataset.Tables(ctx)
	for {
		t, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, t.TableID)
	}
	return ids, nil
}

func (c *bigQueryClient) TableMetadata(ctx context.Context, tableID string) (*bigquery.TableMetadata, error) {
	return c.dataset.Table(tableID).Metadata(ctx)
}

func (c *bigQueryClient) CountRows(ctx context.Context, tableID string) (int64, error) {
	q := c.client.Query(fmt.Sprintf("SELECT COUNT(*) FROM `%s.%s.%s`", c.config.ProjectID, c.config.Dataset, tableID))
	it, err := q.Read(ctx)
	if err != nil {
		return 0, err
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		return 0, err
	}
	if len(row) == 0 {
		return 0, fmt.Errorf("empty count result")
	}
	n, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count type %T", row[0])
	}
	return n, nil
}

func (c *bigQueryClient) Close() error {
	return c.client.Close()
}
