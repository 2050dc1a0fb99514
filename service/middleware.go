package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/urfave/negroni"

	"github.com/kava-labs/resource-aggregator-service/clients/database"
	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/kava-labs/resource-aggregator-service/logging"
	"github.com/kava-labs/resource-aggregator-service/pipeline"
	"github.com/kava-labs/resource-aggregator-service/service/getmdw"
)

type contextKey string

const (
	RequestIDContextKey contextKey = "X-AGGREGATOR-REQUEST-ID"
	RequestIDHeaderKey             = "X-Request-Id"
)

// createRequestLoggingMiddleware returns a handler that assigns every request
// an id, echoed back in the X-Request-Id header, and logs the request
// along with the status and latency of the response
func createRequestLoggingMiddleware(next http.Handler, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		requestLogger := serviceLogger.WithRequestID(requestID)

		requestStartedAt := time.Now()

		// capture the status written by later handlers
		lrw := negroni.NewResponseWriter(w)
		lrw.Header().Set(RequestIDHeaderKey, requestID)

		requestContext := context.WithValue(r.Context(), RequestIDContextKey, requestID)

		next.ServeHTTP(lrw, r.WithContext(requestContext))

		requestLogger.Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", lrw.Status()).
			Int("size", lrw.Size()).
			Dur("latency", time.Since(requestStartedAt)).
			Msg("served request")
	}
}

// createPipelineContextMiddleware returns a handler that attaches a new
// pipeline context for route to the request, with the route params chi
// matched and the inbound query string, before calling next
func createPipelineContextMiddleware(next http.Handler, route config.RouteOptions, environment string, appConfig config.ApplicationConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc := &pipeline.Context{
			RouteOptions:      route,
			Params:            routeParams(r),
			Environment:       environment,
			ApplicationConfig: appConfig,
			Cache: &pipeline.CacheContext{
				APIGet: true,
			},
			RawQuery: r.URL.RawQuery,
		}

		if requestID, ok := r.Context().Value(RequestIDContextKey).(string); ok {
			pc.RequestID = requestID
		}

		next.ServeHTTP(w, pipeline.WithContext(r, pc))
	}
}

// routeParams returns the url params chi matched for the request
func routeParams(r *http.Request) map[string]string {
	params := make(map[string]string)

	routeContext := chi.RouteContext(r.Context())
	if routeContext == nil {
		return params
	}

	for i, key := range routeContext.URLParams.Keys {
		if i < len(routeContext.URLParams.Values) {
			params[key] = routeContext.URLParams.Values[i]
		}
	}

	return params
}

// createMetricMiddleware returns a handler that after next has served the
// request saves a metric describing how it was served, saving happens
// in the background so a slow database never delays the response
func createMetricMiddleware(next http.Handler, service *AggregatorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestStartedAt := time.Now()

		lrw, ok := w.(negroni.ResponseWriter)
		if !ok {
			lrw = negroni.NewResponseWriter(w)
		}

		next.ServeHTTP(lrw, r)

		pc, ok := pipeline.FromRequest(r)
		if !ok {
			service.Error().
				Str("url", r.URL.String()).
				Msg("can't find pipeline context on request, skipping metric")
			return
		}

		metric := &database.AggregatedRequestMetric{
			RouteName:                   pc.RouteOptions.Name,
			RequestPath:                 r.URL.Path,
			ResourceCount:               len(pc.RouteOptions.Resources),
			StatusCode:                  lrw.Status(),
			CacheHit:                    pc.Cache != nil && pc.Cache.Hit,
			ResponseLatencyMilliseconds: time.Since(requestStartedAt).Milliseconds(),
			RequestTime:                 requestStartedAt,
			RequestID:                   pc.RequestID,
		}

		service.pendingMetrics.Add(1)
		go func() {
			defer service.pendingMetrics.Done()

			if err := service.Database.SaveAggregatedRequestMetric(context.Background(), metric); err != nil {
				service.Error().Msgf("error %s saving metric %+v", err, metric)
			}
		}()
	}
}

// createRenderHandler returns the last stage of a route pipeline,
// writing the aggregated body as JSON or 204 if there is none
func createRenderHandler(serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, ok := pipeline.FromRequest(r)
		if !ok || pc.Cache == nil || len(pc.Cache.Body) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write(pc.Cache.Body); err != nil {
			serviceLogger.Error().Msgf("error %s writing response body", err)
		}
	}
}

// createPipelineErrorHandler returns the pipeline error handler which renders
// errors as JSON, failed upstream calls are reported as a bad gateway
// and anything else as an internal error
func createPipelineErrorHandler(serviceLogger *logging.ServiceLogger) pipeline.ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := http.StatusInternalServerError

		var aggregateErr *getmdw.AggregateError
		if errors.As(err, &aggregateErr) {
			status = http.StatusBadGateway

			for _, failure := range aggregateErr.Failures {
				serviceLogger.Debug().
					Str("url", failure.URL).
					Int("status", failure.StatusCode).
					Int("attempts", failure.Attempts).
					Msg(failure.Error())
			}
		}

		serviceLogger.Error().
			Str("url", r.URL.String()).
			Int("status", status).
			Err(err).
			Msg("unable to serve route")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)

		response := ErrorResponse{Errors: []string{err.Error()}}
		if encodeErr := MarshalJSONResponse(&response, w); encodeErr != nil {
			serviceLogger.Error().Msgf("error %s encoding error response", encodeErr)
		}
	}
}
