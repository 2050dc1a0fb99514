// package service provides functions and methods
// for creating and running the api of the aggregator service
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kava-labs/resource-aggregator-service/clients/cache"
	"github.com/kava-labs/resource-aggregator-service/clients/database"
	"github.com/kava-labs/resource-aggregator-service/clients/database/noop"
	"github.com/kava-labs/resource-aggregator-service/clients/database/postgres"
	"github.com/kava-labs/resource-aggregator-service/clients/database/postgres/migrations"
	"github.com/kava-labs/resource-aggregator-service/clients/upstream"
	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/kava-labs/resource-aggregator-service/logging"
	"github.com/kava-labs/resource-aggregator-service/service/cachemdw"
	"github.com/kava-labs/resource-aggregator-service/service/getmdw"
)

// AggregatorService represents an instance of the aggregator service API
type AggregatorService struct {
	Database   database.MetricsDatabase
	Cache      *cachemdw.ServiceCache
	router     chi.Router
	httpServer *http.Server

	// metric saves still running in the background
	pendingMetrics *sync.WaitGroup


	*logging.ServiceLogger
}

// New returns a new AggregatorService with the specified config and error (if any)
func New(ctx context.Context, serviceConfig config.Config, appConfig config.ApplicationConfig, serviceLogger *logging.ServiceLogger) (AggregatorService, error) {
	db, err := createDatabaseClient(ctx, serviceConfig, serviceLogger)
	if err != nil {
		return AggregatorService{}, err
	}

	cacheClient, err := createCacheClient(serviceConfig, serviceLogger)
	if err != nil {
		return AggregatorService{}, err
	}

	return NewWithClients(serviceConfig, appConfig, db, cacheClient, serviceLogger)
}

// NewWithClients returns a new AggregatorService using the provided
// metrics database and cache client and error (if any)
func NewWithClients(
	serviceConfig config.Config,
	appConfig config.ApplicationConfig,
	db database.MetricsDatabase,
	cacheClient cache.Cache,
	serviceLogger *logging.ServiceLogger,
) (AggregatorService, error) {
	if err := config.ValidateApplicationConfig(appConfig, serviceConfig.Environment); err != nil {
		return AggregatorService{}, fmt.Errorf("invalid routes config: %w", err)
	}

	serviceCache := cachemdw.NewServiceCache(
		cacheClient,
		serviceConfig.CachePrefix,
		serviceConfig.CacheEnabled,
		&cachemdw.Config{
			DefaultTTL: serviceConfig.CacheTTL,
			NidHeader:  serviceConfig.CacheNidHeader,
		},
		serviceLogger,
	)

	// the upstream client and its connection pool are shared by every route
	upstreamClient := upstream.NewClient(
		upstream.NewPooledHTTPClient(serviceConfig.UpstreamMaxIdleConnectionsPerHost, serviceConfig.UpstreamTimeout),
		serviceLogger,
	)

	service := AggregatorService{
		Database:       db,
		Cache:          serviceCache,
		pendingMetrics: &sync.WaitGroup{},
		ServiceLogger:  serviceLogger,
	}

	service.router = createRouter(&service, serviceConfig, appConfig, getmdw.NewAggregator(upstreamClient, serviceLogger))

	// create an http server for the caller to start at their own discretion
	service.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", serviceConfig.ProxyServicePort),
		Handler:      service.router,
		ReadTimeout:  time.Duration(serviceConfig.HTTPReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(serviceConfig.HTTPWriteTimeoutSeconds) * time.Second,
	}

	return service, nil
}

// Handler returns the http handler serving every route of the service
func (s *AggregatorService) Handler() http.Handler {
	return s.router
}

// Run listens on the configured port and serves the aggregator service until
// ctx is done, see Serve for how the service is stopped
func (s *AggregatorService) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener, shutdownTimeout)
}

// Serve serves the aggregator service on listener until ctx is done, then
// gracefully shuts it down and only returns once in flight requests and their
// metric saves have completed or shutdownTimeout has elapsed, returning the
// shutdown error (if any)
func (s *AggregatorService) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	stopped := make(chan struct{})
	shutdownErr := make(chan error, 1)

	go func() {
		select {
		case <-stopped:
			return
		case <-ctx.Done():
		}

		s.Info().Msgf("shutting down service, waiting up to %s for in flight requests", shutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := s.httpServer.Shutdown(shutdownCtx)
		if err == nil {
			err = s.waitForPendingMetrics(shutdownCtx)
		}

		shutdownErr <- err
	}()

	err := s.httpServer.Serve(listener)
	if !errors.Is(err, http.ErrServerClosed) {
		close(stopped)
		return err
	}

	// Serve returns as soon as Shutdown starts, wait for the drain to finish
	return <-shutdownErr
}

func (s *AggregatorService) waitForPendingMetrics(ctx context.Context) error {
	saved := make(chan struct{})
	go func() {
		s.pendingMetrics.Wait()
		close(saved)
	}()

	select {
	case <-saved:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("request metrics still being saved at shutdown: %w", ctx.Err())
	}
}

// createDatabaseClient returns the metrics database for the service, a noop
// database when metric collection is disabled, running migrations if enabled
func createDatabaseClient(ctx context.Context, serviceConfig config.Config, logger *logging.ServiceLogger) (database.MetricsDatabase, error) {
	if !serviceConfig.MetricCollectionEnabled {
		logger.Debug().Msg("metric collection is disabled, using noop database")
		return noop.New(), nil
	}

	databaseConfig := postgres.DatabaseConfig{
		DatabaseName:        serviceConfig.DatabaseName,
		DatabaseEndpointURL: serviceConfig.DatabaseEndpointURL,
		DatabaseUsername:    serviceConfig.DatabaseUserName,
		DatabasePassword:    serviceConfig.DatabasePassword,
		ReadTimeoutSeconds:  serviceConfig.DatabaseReadTimeoutSeconds,
		SSLEnabled:          serviceConfig.DatabaseSSLEnabled,
		QueryLoggingEnabled: serviceConfig.DatabaseQueryLoggingEnabled,
		Logger:              logger,
	}

	serviceDatabase, err := postgres.NewClient(databaseConfig)
	if err != nil {
		logger.Error().Msgf("error %s creating database using config %+v", err, databaseConfig)

		return nil, err
	}

	if !serviceConfig.RunDatabaseMigrations {
		logger.Debug().Msg("skipping attempting to run migrations on database since RUN_DATABASE_MIGRATIONS was false")

		return serviceDatabase, nil
	}

	// wait for database to be reachable before running migrations
	for {
		if err := serviceDatabase.HealthCheck(); err == nil {
			break
		}

		logger.Debug().Msg("unable to connect to database, will retry in 1 second")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database never became reachable: %w", ctx.Err())
		case <-time.After(1 * time.Second):
		}
	}

	migrationStatus, err := serviceDatabase.Migrate(ctx, *migrations.Migrations, logger)
	if err != nil {
		logger.Error().Msgf("error %s running migrations on database", err)

		return nil, err
	}

	logger.Debug().Msgf("run migrations status: %+v", migrationStatus)

	return serviceDatabase, nil
}

// createCacheClient returns redis backed storage when caching is enabled,
// otherwise an in memory cache which the disabled cache stages never use
func createCacheClient(serviceConfig config.Config, logger *logging.ServiceLogger) (cache.Cache, error) {
	if !serviceConfig.CacheEnabled {
		return cache.NewInMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(
		&cache.RedisConfig{
			Address:  serviceConfig.RedisEndpointURL,
			Password: serviceConfig.RedisPassword,
			DB:       0,
		},
		logger,
	)
	if err != nil {
		logger.Error().Msgf("error %s creating redis cache for %s", err, serviceConfig.RedisEndpointURL)

		return nil, err
	}

	return redisCache, nil
}
