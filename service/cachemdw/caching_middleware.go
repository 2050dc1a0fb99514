package cachemdw

import (
	"net/http"

	"github.com/kava-labs/resource-aggregator-service/pipeline"
)

// CachingMiddleware returns a pipeline stage which works in the following way:
// - tries to get the pipeline context from the request (previous middleware should set it)
// - checks few conditions:
//   - if the body wasn't served from the cache
//   - if the upstream resources were requested
//   - if a body is present on the pipeline context
//
// - if all above is true - caches the body with the route ttl
// - calls next middleware
func (c *ServiceCache) CachingMiddleware(
	next http.Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// if cache is not enabled - do nothing and forward to next middleware
		if !c.cacheEnabled {
			c.Logger.Trace().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Msg("cache is disabled skipping caching-middleware")

			next.ServeHTTP(w, r)
			return
		}

		pc, ok := pipeline.FromRequest(r)
		if !ok || pc.Cache == nil {
			c.Logger.Error().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Msg("can't find pipeline context on request")

			next.ServeHTTP(w, r)
			return
		}

		if pc.Cache.APIGet && !pc.Cache.Hit && len(pc.Cache.Body) > 0 {
			key := GetRouteKey(c.cachePrefix, pc.RouteOptions.Name, r, pc.Cache.Nid)
			ttl := pc.RouteOptions.CacheTTL(c.config.DefaultTTL)

			if err := c.CacheBody(r.Context(), key, pc.Cache.Body, ttl); err != nil {
				c.Logger.Error().Msgf("can't cache route body: %v", err)
			}
		}

		next.ServeHTTP(w, r)
	}
}
