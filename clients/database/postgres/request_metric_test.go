package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/resource-aggregator-service/clients/database"
)

func TestNoDatabaseSave(t *testing.T) {
	db := &Client{}

	arm := &database.AggregatedRequestMetric{}
	err := db.SaveAggregatedRequestMetric(context.Background(), arm)
	require.ErrorIs(t, err, ErrNilDatabaseClient)
}

func TestNoDatabaseCountAggregatedRequestMetrics(t *testing.T) {
	db := &Client{}

	_, err := db.CountAggregatedRequestMetrics(context.Background())
	require.ErrorIs(t, err, ErrNilDatabaseClient)
}

func TestDeleteAggregatedRequestMetricsOlderThanNDays(t *testing.T) {
	db := &Client{}

	err := db.DeleteAggregatedRequestMetricsOlderThanNDays(context.Background(), 0)
	require.ErrorIs(t, err, ErrNilDatabaseClient)
}

func TestUnitTestConvertAggregatedRequestMetric(t *testing.T) {
	metric := &database.AggregatedRequestMetric{
		RouteName:                   "user",
		RequestPath:                 "/users/42",
		ResourceCount:               2,
		StatusCode:                  200,
		CacheHit:                    true,
		ResponseLatencyMilliseconds: 12,
		RequestTime:                 time.Unix(1700000000, 0),
		RequestID:                   "abc",
	}

	require.Equal(t, metric, convertAggregatedRequestMetric(metric).ToAggregatedRequestMetric())
}
