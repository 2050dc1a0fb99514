package getmdw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/kava-labs/resource-aggregator-service/logging"
	"github.com/kava-labs/resource-aggregator-service/pipeline"
)

const (
	// NidParamName is the template variable the cache nid is exposed as
	NidParamName = "nid"
)

var (
	ErrMissingPipelineContext = errors.New("request has no pipeline context")

	// emptyBody is the aggregated body of a route without resources
	emptyBody = json.RawMessage("[]")
)

// GetMiddlewareConfig wraps values used to create the get middleware
type GetMiddlewareConfig struct {
	Aggregator *Aggregator
	// UpstreamTimeout bounds a whole fan-out including retries, zero means no bound
	UpstreamTimeout time.Duration
	ErrorHandler    pipeline.ErrorHandler
	ServiceLogger   *logging.ServiceLogger
}

// CreateGetMiddleware returns a pipeline stage which, unless an earlier stage
// cleared Cache.APIGet, requests every resource of the route and stores the
// aggregated result in Cache.Body before calling next.
// Failures are handed to the configured error handler and next is not called.
func CreateGetMiddleware(next http.Handler, cfg *GetMiddlewareConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, ok := pipeline.FromRequest(r)
		if !ok {
			cfg.ServiceLogger.Error().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Msg("can't find pipeline context on request")

			cfg.ErrorHandler(w, r, ErrMissingPipelineContext)
			return
		}

		// nothing to fetch, e.g. the body was already served from the cache
		if pc.Cache == nil || !pc.Cache.APIGet {
			next.ServeHTTP(w, r)
			return
		}

		body, err := Get(r.Context(), pc, cfg.Aggregator, cfg.UpstreamTimeout)
		if err != nil {
			cfg.ServiceLogger.Debug().
				Str("route", pc.RouteOptions.Name).
				Err(err).
				Msg("unable to get route resources")

			cfg.ErrorHandler(w, r, err)
			return
		}

		pc.Cache.Body = body

		next.ServeHTTP(w, r)
	}
}

// Get expands the route resources of pc and aggregates them, resources
// are expanded up front so a bad template fails before any call is made
func Get(ctx context.Context, pc *pipeline.Context, aggregator *Aggregator, timeout time.Duration) (json.RawMessage, error) {
	var rawQuery string
	if pc.RouteOptions.PassQuery {
		rawQuery = pc.RawQuery
	}

	resources, err := ExpandAll(pc.RouteOptions.Resources, RequestParams(pc), rawQuery)
	if err != nil {
		return nil, err
	}

	if len(resources) == 0 {
		return emptyBody, nil
	}

	envConfig, ok := pc.EnvironmentConfig()
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownEnvironment, pc.Environment)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return aggregator.Aggregate(ctx, resources, pc.RouteOptions.Headers, envConfig)
}

// RequestParams returns the template variables for the request: the
// route params plus the cache nid when one was set by an earlier stage
func RequestParams(pc *pipeline.Context) map[string]string {
	params := make(map[string]string, len(pc.Params)+1)
	for name, value := range pc.Params {
		params[name] = value
	}

	if pc.Cache != nil && pc.Cache.Nid != "" {
		params[NidParamName] = pc.Cache.Nid
	}

	return params
}
