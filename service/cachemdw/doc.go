// Package cachemdw is responsible for caching aggregated route responses and provides corresponding middleware
// package can work with any underlying storage which implements simple cache.Cache interface
//
// package provides two different middlewares:
// - IsCachedMiddleware (should be run before the get middleware)
// - CachingMiddleware  (should be run after the get middleware)
//
// IsCachedMiddleware is responsible for setting the cached body on the pipeline context if it's in the cache,
// which tells the get middleware there is nothing left to fetch
// CachingMiddleware is responsible for caching the body the get middleware placed on the pipeline context
package cachemdw
