package postgres

import (
	"context"
	"time"

	"github.com/kava-labs/resource-aggregator-service/clients/database"
)

// SaveAggregatedRequestMetric saves the metric to
// the database, returning error (if any).
func (c *Client) SaveAggregatedRequestMetric(ctx context.Context, metric *database.AggregatedRequestMetric) error {
	if c.db == nil {
		return ErrNilDatabaseClient
	}

	arm := convertAggregatedRequestMetric(metric)
	_, err := c.db.NewInsert().Model(arm).Exec(ctx)
	if err != nil {
		return err
	}

	metric.ID = arm.ID

	return nil
}

// CountAggregatedRequestMetrics returns the number of stored
// metrics and error (if any). Used for status check.
func (c *Client) CountAggregatedRequestMetrics(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, ErrNilDatabaseClient
	}

	count, err := c.db.NewSelect().Model((*AggregatedRequestMetric)(nil)).Count(ctx)

	return int64(count), err
}

// DeleteAggregatedRequestMetricsOlderThanNDays deletes
// all aggregated request metrics older than the specified
// days, returning error (if any).
// Used during pruning process.
func (c *Client) DeleteAggregatedRequestMetricsOlderThanNDays(ctx context.Context, n int64) error {
	if c.db == nil {
		return ErrNilDatabaseClient
	}

	cutoff := time.Now().Add(-time.Duration(n) * 24 * time.Hour)
	_, err := c.db.NewDelete().Model((*AggregatedRequestMetric)(nil)).Where("request_time < ?", cutoff).Exec(ctx)

	return err
}
