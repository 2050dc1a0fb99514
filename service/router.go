package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/kava-labs/resource-aggregator-service/service/getmdw"
)

// createRouter registers the operational endpoints and one
// pipeline per configured route on a new chi router
func createRouter(service *AggregatorService, serviceConfig config.Config, appConfig config.ApplicationConfig, aggregator *getmdw.Aggregator) chi.Router {
	router := chi.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return createRequestLoggingMiddleware(next, service.ServiceLogger)
	})

	router.Get("/healthcheck", createHealthcheckHandler(service))
	router.Get("/servicecheck", createServicecheckHandler(service))
	router.Get("/status/database", createDatabaseStatusHandler(service))

	for _, route := range appConfig.Routes {
		router.Get(route.Path, createRoutePipeline(service, serviceConfig, appConfig, route, aggregator))

		service.Debug().
			Str("route", route.Name).
			Str("path", route.Path).
			Int("resources", len(route.Resources)).
			Msg("registered route")
	}

	return router
}

// createRoutePipeline chains the stages serving a single route,
// in order of execution:
// - pipeline context initialization
// - metrics (records the outcome after the stages below ran)
// - IsCached (serves the body from the cache if present)
// - Get (fans out to the upstream resources unless the body was cached)
// - Caching (stores a freshly fetched body)
// - render (writes the body to the client)
// a stage that fails hands its error to the pipeline error handler
// instead of calling the next stage
func createRoutePipeline(
	service *AggregatorService,
	serviceConfig config.Config,
	appConfig config.ApplicationConfig,
	route config.RouteOptions,
	aggregator *getmdw.Aggregator,
) http.HandlerFunc {
	renderHandler := createRenderHandler(service.ServiceLogger)

	cachingMiddleware := service.Cache.CachingMiddleware(renderHandler)

	getMiddleware := getmdw.CreateGetMiddleware(cachingMiddleware, &getmdw.GetMiddlewareConfig{
		Aggregator:      aggregator,
		UpstreamTimeout: serviceConfig.UpstreamTimeout,
		ErrorHandler:    createPipelineErrorHandler(service.ServiceLogger),
		ServiceLogger:   service.ServiceLogger,
	})

	isCachedMiddleware := service.Cache.IsCachedMiddleware(getMiddleware)

	metricMiddleware := createMetricMiddleware(isCachedMiddleware, service)

	return createPipelineContextMiddleware(metricMiddleware, route, serviceConfig.Environment, appConfig)
}
