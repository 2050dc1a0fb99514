package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/kava-labs/resource-aggregator-service/clients/database"
)

// AggregatedRequestMetric is the row stored for every
// request served by the aggregator service
type AggregatedRequestMetric struct {
	bun.BaseModel `bun:"table:aggregated_request_metrics,alias:arm"`

	ID                          int64 `bun:",pk,autoincrement"`
	RouteName                   string
	RequestPath                 string
	ResourceCount               int
	StatusCode                  int
	CacheHit                    bool
	ResponseLatencyMilliseconds int64
	RequestTime                 time.Time
	RequestID                   string
}

func (arm *AggregatedRequestMetric) ToAggregatedRequestMetric() *database.AggregatedRequestMetric {
	return &database.AggregatedRequestMetric{
		ID:                          arm.ID,
		RouteName:                   arm.RouteName,
		RequestPath:                 arm.RequestPath,
		ResourceCount:               arm.ResourceCount,
		StatusCode:                  arm.StatusCode,
		CacheHit:                    arm.CacheHit,
		ResponseLatencyMilliseconds: arm.ResponseLatencyMilliseconds,
		RequestTime:                 arm.RequestTime,
		RequestID:                   arm.RequestID,
	}
}

func convertAggregatedRequestMetric(metric *database.AggregatedRequestMetric) *AggregatedRequestMetric {
	return &AggregatedRequestMetric{
		ID:                          metric.ID,
		RouteName:                   metric.RouteName,
		RequestPath:                 metric.RequestPath,
		ResourceCount:               metric.ResourceCount,
		StatusCode:                  metric.StatusCode,
		CacheHit:                    metric.CacheHit,
		ResponseLatencyMilliseconds: metric.ResponseLatencyMilliseconds,
		RequestTime:                 metric.RequestTime,
		RequestID:                   metric.RequestID,
	}
}
