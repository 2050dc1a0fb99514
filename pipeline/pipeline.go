// package pipeline holds the per request state shared by the
// middleware stages of a route, stages read their inputs from
// and write their results to the Context stored on the request
package pipeline

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kava-labs/resource-aggregator-service/config"
)

type contextKey string

const (
	// ContextKey is the request context key the pipeline Context is stored under
	ContextKey contextKey = "X-AGGREGATOR-PIPELINE-CONTEXT"
)

// CacheContext is the mutable scratch space passed between stages
type CacheContext struct {
	// Nid is an optional cache / session identifier which, when set,
	// is made available to resource templates as the `nid` variable
	Nid string
	// APIGet signals that the upstream resources must be requested,
	// stages which can satisfy the request some other way clear it
	APIGet bool
	// Hit is set when Body was served from the response cache
	Hit bool
	// Body is the aggregated response, a single JSON value or a JSON array
	Body json.RawMessage
}

// Context carries everything a stage needs to know about the request being served
type Context struct {
	RequestID         string
	RouteOptions      config.RouteOptions
	Params            map[string]string
	Environment       string
	ApplicationConfig config.ApplicationConfig
	Cache             *CacheContext
	RawQuery          string
}

// EnvironmentConfig returns the upstream settings for the environment
// the request is being served in and whether they exist
func (pc *Context) EnvironmentConfig() (config.EnvironmentConfig, bool) {
	envConfig, ok := pc.ApplicationConfig.EnvConfig[pc.Environment]
	return envConfig, ok
}

// WithContext returns a copy of the request with the pipeline context attached
func WithContext(r *http.Request, pc *Context) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ContextKey, pc))
}

// FromRequest returns the pipeline context attached to the request, if any
func FromRequest(r *http.Request) (*Context, bool) {
	pc, ok := r.Context().Value(ContextKey).(*Context)
	return pc, ok && pc != nil
}

// ErrorHandler is the error channel of the pipeline, a stage that fails
// hands its error to the handler instead of calling the next stage
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
