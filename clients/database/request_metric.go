package database

import (
	"time"
)

// AggregatedRequestMetric contains request metrics for
// a single request served by the aggregator service
type AggregatedRequestMetric struct {
	ID                          int64
	RouteName                   string
	RequestPath                 string
	ResourceCount               int
	StatusCode                  int
	CacheHit                    bool
	ResponseLatencyMilliseconds int64
	RequestTime                 time.Time
	RequestID                   string
}
