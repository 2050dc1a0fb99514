// package routines provides configuration and logic
// for running background routines such as metric pruning
// for removing historical aggregated request metrics
package routines

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/resource-aggregator-service/clients/database"
	"github.com/kava-labs/resource-aggregator-service/logging"
)

// MetricPruningRoutineConfig wraps values used
// for creating a new metric pruning routine
type MetricPruningRoutineConfig struct {
	Interval                     time.Duration
	StartDelay                   time.Duration
	MaxRequestMetricsHistoryDays int64
	Database                     database.MetricsDatabase
	Logger                       *logging.ServiceLogger
}

// MetricPruningRoutine can be used to
// run a background routine on a configurable interval
// to prune historical request metrics
type MetricPruningRoutine struct {
	id                           string
	interval                     time.Duration
	startDelay                   time.Duration
	maxRequestMetricsHistoryDays int64
	db                           database.MetricsDatabase
	*logging.ServiceLogger
}

// Run runs the metric pruning routine until ctx is done, returning error (if any)
// from starting the routine and an error channel which any errors
// encountered during running will be sent on
func (mpr *MetricPruningRoutine) Run(ctx context.Context) (<-chan error, error) {
	if mpr.interval <= 0 {
		return nil, fmt.Errorf("invalid metric pruning interval %s, must be greater than zero", mpr.interval)
	}

	errorChannel := make(chan error, 1)

	go func() {
		defer close(errorChannel)

		select {
		case <-ctx.Done():
			return
		case <-time.After(mpr.startDelay):
		}

		ticker := time.NewTicker(mpr.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				mpr.Trace().Msgf("%s tick at %+v", mpr.id, tick)

				err := mpr.db.DeleteAggregatedRequestMetricsOlderThanNDays(ctx, mpr.maxRequestMetricsHistoryDays)
				if err != nil {
					mpr.Error().Msgf("%s error %s pruning metrics older than %d days", mpr.id, err, mpr.maxRequestMetricsHistoryDays)

					// don't block the routine on a reader that isn't keeping up
					select {
					case errorChannel <- err:
					default:
					}
				}
			}
		}
	}()

	return errorChannel, nil
}

// NewMetricPruningRoutine creates a new metric pruning routine
// using the provided config, returning the routine and error (if any)
func NewMetricPruningRoutine(config MetricPruningRoutineConfig) (*MetricPruningRoutine, error) {
	if config.Database == nil {
		return nil, fmt.Errorf("metric pruning routine requires a database")
	}

	return &MetricPruningRoutine{
		id:                           uuid.New().String(),
		interval:                     config.Interval,
		startDelay:                   config.StartDelay,
		maxRequestMetricsHistoryDays: config.MaxRequestMetricsHistoryDays,
		db:                           config.Database,
		ServiceLogger:                config.Logger,
	}, nil
}
