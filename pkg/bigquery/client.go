// Package bigquery streams analytics rows into the sales dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/gcp"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errDatasetRequired = errors.New("bigquery dataset is required")
	errTableRequired   = errors.New("bigquery sales table is required")
	errNotInitialized  = errors.New("bigquery client not initialized")
)

// Client owns one dataset handle and the sales table inside it.
type Client struct {
	bq         *bigquery.Client
	dataset    *bigquery.Dataset
	salesTable string
}

// NewClient connects and refuses to start unless the dataset and the sales
// table already exist. Schema changes are made outside the service.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID, err := gcp.ProjectID(gcpCfg)
	if err != nil {
		return nil, err
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	table := strings.TrimSpace(cfg.SalesEventsTable)
	if table == "" {
		return nil, errTableRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(datasetID), salesTable: table}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "table": table}), "bigquery client initialized")
	}
	return c, nil
}

// Ping reads the dataset and table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeMetadataErr("dataset", c.dataset.DatasetID, err)
	}
	if _, err := c.dataset.Table(c.salesTable).Metadata(ctx); err != nil {
		return describeMetadataErr("table", c.salesTable, err)
	}
	return nil
}

// InsertSalesEvents streams rows into the sales table. Each row supplies its
// own insert id so a retried batch is deduplicated by BigQuery.
func (c *Client) InsertSalesEvents(ctx context.Context, rows []SalesEventRow) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	savers := make([]bigquery.ValueSaver, len(rows))
	for i := range rows {
		savers[i] = rows[i]
	}
	return c.dataset.Table(c.salesTable).Inserter().Put(ctx, savers)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func describeMetadataErr(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
