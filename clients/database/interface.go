package database

import "context"

// MetricsDatabase is the storage used for request metrics,
// implemented by the postgres client and by the noop client
// used when metric collection is disabled
type MetricsDatabase interface {
	SaveAggregatedRequestMetric(ctx context.Context, metric *AggregatedRequestMetric) error
	CountAggregatedRequestMetrics(ctx context.Context) (int64, error)
	DeleteAggregatedRequestMetricsOlderThanNDays(ctx context.Context, n int64) error
	HealthCheck() error
}
