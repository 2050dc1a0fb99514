// package main reads & validates configuration for the aggregator service
// and if the config is valid starts and monitors an instance of the aggregator service
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/kava-labs/resource-aggregator-service/logging"
	"github.com/kava-labs/resource-aggregator-service/routines"
	"github.com/kava-labs/resource-aggregator-service/service"
	"github.com/kava-labs/resource-aggregator-service/tracing"
)

const shutdownTimeout = 10 * time.Second

var (
	serviceConfig config.Config
	appConfig     config.ApplicationConfig
	serviceLogger logging.ServiceLogger
)

func init() {
	// values already present in the environment take precedence over the .env file
	_ = godotenv.Load()

	serviceConfig = config.ReadConfig()

	err := config.Validate(serviceConfig)

	if err != nil {
		panic(err)
	}

	serviceLogger, err = logging.New(serviceConfig.LogLevel)

	if err != nil {
		panic(err)
	}

	appConfig, err = config.LoadApplicationConfig(serviceConfig.RoutesConfigPath)

	if err != nil {
		panic(err)
	}

	err = config.ValidateApplicationConfig(appConfig, serviceConfig.Environment)

	if err != nil {
		panic(err)
	}
}

func startMetricPruningRoutine(ctx context.Context, service service.AggregatorService) {
	if !serviceConfig.MetricPruningEnabled {
		serviceLogger.Info().Msg("skipping starting metric pruning routine since it is disabled via config")

		return
	}

	metricPruningRoutine, err := routines.NewMetricPruningRoutine(routines.MetricPruningRoutineConfig{
		Interval:                     serviceConfig.MetricPruningRoutineInterval,
		StartDelay:                   serviceConfig.MetricPruningRoutineInterval,
		MaxRequestMetricsHistoryDays: int64(serviceConfig.MetricPruningMaxRequestMetricsHistoryDays),
		Database:                     service.Database,
		Logger:                       &serviceLogger,
	})

	if err != nil {
		serviceLogger.Error().Err(err).Send()

		return
	}

	errChan, err := metricPruningRoutine.Run(ctx)

	if err != nil {
		serviceLogger.Error().Err(err).Send()

		return
	}

	go func() {
		for routineErr := range errChan {
			serviceLogger.Error().Msgf("metric pruning routine encountered error %s", routineErr)
		}
	}()
}

func main() {
	serviceLogger.Debug().Msgf("initial config: %+v", serviceConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serviceConfig.TracingEnabled {
		shutdownTracer, err := tracing.InitTracer(os.Stdout, &serviceLogger)

		if err != nil {
			serviceLogger.Panic().Err(err).Send()
		}

		defer shutdownTracer(context.Background())
	}

	service, err := service.New(ctx, serviceConfig, appConfig, &serviceLogger)

	if err != nil {
		serviceLogger.Panic().Err(err).Send()
	}

	startMetricPruningRoutine(ctx, service)

	serviceLogger.Info().Msgf("serving %d routes on port %s", len(appConfig.Routes), serviceConfig.ProxyServicePort)

	if err := service.Run(ctx, shutdownTimeout); err != nil {
		serviceLogger.Error().Msgf("service stopped with error %s", err)
	}
}
