package getmdw

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/kava-labs/resource-aggregator-service/clients/upstream"
	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/kava-labs/resource-aggregator-service/logging"
)

const (
	IncompleteRequestsMessage = "some requests could not be completed"
)

var (
	// ErrRequestsIncomplete matches any AggregateError via errors.Is
	ErrRequestsIncomplete = errors.New(IncompleteRequestsMessage)
)

// AggregateError is returned when at least one upstream call failed.
// Its message is generic, the per resource failures are
// kept on the error for logging only.
type AggregateError struct {
	Failures []*upstream.RequestError
}

// Error implements the error interface for AggregateError
func (e *AggregateError) Error() string {
	return IncompleteRequestsMessage
}

// Is reports whether target is ErrRequestsIncomplete
func (e *AggregateError) Is(target error) bool {
	return target == ErrRequestsIncomplete
}

// Caller makes a single upstream call, satisfied by *upstream.Client
type Caller interface {
	Call(ctx context.Context, req upstream.Request) upstream.Outcome
}

// Aggregator fans a list of expanded resources out into
// concurrent upstream calls and combines their outcomes
type Aggregator struct {
	caller Caller
	*logging.ServiceLogger
}

// NewAggregator creates a new Aggregator making calls with caller
func NewAggregator(caller Caller, logger *logging.ServiceLogger) *Aggregator {
	return &Aggregator{
		caller:        caller,
		ServiceLogger: logger,
	}
}

// Aggregate requests every resource concurrently and waits for all of them to
// settle, a failed call never cancels the others. If any call failed an
// *AggregateError is returned. Otherwise the bodies are returned in resource
// order, as the body itself when exactly one resource was requested or as a
// JSON array when more were.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	resources []string,
	headers map[string]string,
	envConfig config.EnvironmentConfig,
) (json.RawMessage, error) {
	outcomes := make([]upstream.Outcome, len(resources))

	wg := sync.WaitGroup{}
	for i, resource := range resources {
		wg.Add(1)

		go func(idx int, path string) {
			defer wg.Done()

			// each goroutine owns exactly one slot so no locking is needed
			outcomes[idx] = a.caller.Call(ctx, upstream.Request{
				BaseURL:     envConfig.APIBaseURL,
				Path:        path,
				Headers:     headers,
				MaxAttempts: envConfig.Attempts(),
				RetryDelay:  envConfig.RetryDelay(),
			})
		}(i, resource)
	}

	wg.Wait()

	return a.combine(outcomes)
}

// combine applies the all or nothing policy to the settled outcomes
func (a *Aggregator) combine(outcomes []upstream.Outcome) (json.RawMessage, error) {
	var failures []*upstream.RequestError
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failures = append(failures, outcome.Err)
		}
	}

	if len(failures) > 0 {
		for _, failure := range failures {
			a.Error().
				Str("url", failure.URL).
				Int("status_code", failure.StatusCode).
				Int("attempts", failure.Attempts).
				Msg(failure.Error())
		}

		return nil, &AggregateError{Failures: failures}
	}

	// a single resource is handed back unwrapped, callers rely on
	// the shape differing between one and many resources
	if len(outcomes) == 1 {
		return outcomes[0].Body, nil
	}

	bodies := make([]json.RawMessage, 0, len(outcomes))
	for _, outcome := range outcomes {
		bodies = append(bodies, outcome.Body)
	}

	return json.Marshal(bodies)
}
