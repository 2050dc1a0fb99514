// Package getmdw is responsible for the middleware that fetches a route's upstream resources.

// The primary export is CreateGetMiddleware which expands each resource template of the route
// with the request params (and optionally the inbound query string), requests all of them
// from the upstream api concurrently and stores the combined result on the pipeline context.

// Every call is allowed to finish before the result is combined, a failing call does not
// cancel the others. The combined result is all or nothing:
//   - any failed call fails the whole request with a generic "some requests could not be completed" error
//   - a route with exactly one resource gets that resource's JSON body as-is
//   - a route with several resources gets a JSON array of the bodies, in the order the resources are configured
package getmdw
