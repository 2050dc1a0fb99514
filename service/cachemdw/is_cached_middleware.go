package cachemdw

import (
	"errors"
	"net/http"

	"github.com/kava-labs/resource-aggregator-service/clients/cache"
	"github.com/kava-labs/resource-aggregator-service/pipeline"
)

const (
	CacheHeaderKey       = "X-Cache-Status"
	CacheHitHeaderValue  = "HIT"
	CacheMissHeaderValue = "MISS"
)

// IsCachedMiddleware returns a pipeline stage which works in the following way:
// - tries to get the pipeline context from the request (previous middleware should set it)
// - copies the nid request header onto the pipeline context
// - tries to get the route body from the cache
//   - if present sets it on the pipeline context, clears APIGet and forwards to next middleware
//   - if not present leaves APIGet set and forwards to next middleware
//
// - next middleware should check APIGet and act accordingly
func (c *ServiceCache) IsCachedMiddleware(
	next http.Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, ok := pipeline.FromRequest(r)
		if !ok || pc.Cache == nil {
			c.Logger.Error().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Msg("can't find pipeline context on request")

			next.ServeHTTP(w, r)
			return
		}

		if c.config.NidHeader != "" {
			pc.Cache.Nid = r.Header.Get(c.config.NidHeader)
		}

		// if cache is not enabled - do nothing and forward to next middleware
		if !c.cacheEnabled {
			next.ServeHTTP(w, r)
			return
		}

		key := GetRouteKey(c.cachePrefix, pc.RouteOptions.Name, r, pc.Cache.Nid)

		// Check if the request is cached:
		// 1. if not cached or we encounter an error then leave APIGet set and forward to next middleware
		// 2. if cached then set the body, clear APIGet and forward to next middleware
		body, err := c.GetCachedBody(r.Context(), key)
		if err != nil && !errors.Is(err, cache.ErrNotFound) {
			// log unexpected error
			c.Logger.Error().
				Err(err).
				Msg("error during getting response from cache")
		}
		if err != nil {
			w.Header().Set(CacheHeaderKey, CacheMissHeaderValue)
			next.ServeHTTP(w, r)
			return
		}

		c.Logger.Trace().
			Str("key", key).
			Msg("serving route from cache")

		pc.Cache.Body = body
		pc.Cache.Hit = true
		pc.Cache.APIGet = false
		w.Header().Set(CacheHeaderKey, CacheHitHeaderValue)

		next.ServeHTTP(w, r)
	}
}
