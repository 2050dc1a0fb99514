package noop

import (
	"context"

	"github.com/kava-labs/resource-aggregator-service/clients/database"
)

// Noop is a database client that does nothing
type Noop struct{}

var _ database.MetricsDatabase = (*Noop)(nil)

func New() *Noop {
	return &Noop{}
}

func (e *Noop) SaveAggregatedRequestMetric(ctx context.Context, metric *database.AggregatedRequestMetric) error {
	return nil
}

func (e *Noop) CountAggregatedRequestMetrics(ctx context.Context) (int64, error) {
	return 0, nil
}

func (e *Noop) DeleteAggregatedRequestMetricsOlderThanNDays(ctx context.Context, n int64) error {
	return nil
}

func (e *Noop) HealthCheck() error {
	return nil
}
