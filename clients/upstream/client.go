// package upstream provides a retrying client for
// requesting JSON resources from the upstream api
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kava-labs/resource-aggregator-service/logging"
)

const (
	// DefaultErrorMessage is reported for failed calls that have no more specific reason
	DefaultErrorMessage = "An error with the API has occurred."
	// DefaultErrorStatusCode is reported for failed calls that never received a response
	DefaultErrorStatusCode = http.StatusInternalServerError
)

var (
	errUpstreamServerError = errors.New("upstream server error")
)

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
	Attempts   int
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) *RequestError {
	return &RequestError{message: message, URL: url, StatusCode: statusCode}
}

// Outcome is the result of a single upstream call,
// exactly one of Body and Err is set
type Outcome struct {
	Body json.RawMessage
	Err  *RequestError
}

// Failed returns whether the call ended in failure
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Request wraps the values describing a single upstream call
type Request struct {
	BaseURL string
	Path    string
	Headers map[string]string
	// MaxAttempts is the total number of attempts, values below one mean one attempt
	MaxAttempts int
	// RetryDelay is the flat delay between attempts
	RetryDelay time.Duration
}

// URL returns the full url the request is made to
func (r Request) URL() string {
	return r.BaseURL + "/" + r.Path
}

// Client makes GET requests against the upstream api, retrying
// network errors and server errors up to the attempt budget of the request.
// The wrapped http client is shared between all calls and never modified.
type Client struct {
	*http.Client
	*logging.ServiceLogger
}

// NewClient creates a new Client making requests with httpClient
func NewClient(httpClient *http.Client, logger *logging.ServiceLogger) *Client {
	return &Client{
		Client:        httpClient,
		ServiceLogger: logger,
	}
}

// NewPooledHTTPClient returns an http client whose connection pool is sized for
// fanning out many concurrent requests to the same upstream host, outbound
// requests are traced with the globally registered otel tracer provider
func NewPooledHTTPClient(maxIdleConnsPerHost int, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = maxIdleConnsPerHost * 2
	transport.MaxIdleConnsPerHost = maxIdleConnsPerHost

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   timeout,
	}
}

// attempt is what a single request attempt observed
type attempt struct {
	err        error
	statusCode int
	body       []byte
}

// Call requests the resource described by req, retrying network errors and
// 5xx responses, and classifies the last attempt made into an Outcome.
// 404, 5xx and empty bodies are failures even though they were responses.
func (c *Client) Call(ctx context.Context, req Request) Outcome {
	fullURL := req.URL()
	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		attempts int
		last     attempt
	)

	operation := func() error {
		attempts++
		last = c.do(ctx, fullURL, req.Headers)

		if last.err != nil {
			// the caller gave up, waiting for another attempt is pointless
			if ctx.Err() != nil {
				return backoff.Permanent(last.err)
			}
			return last.err
		}

		if isServerError(last.statusCode) {
			return fmt.Errorf("%w %d", errUpstreamServerError, last.statusCode)
		}

		return nil
	}

	// the retry error is ignored, the outcome is classified from the last attempt
	_ = backoff.RetryNotify(operation, retryPolicy(ctx, maxAttempts, req.RetryDelay), func(err error, wait time.Duration) {
		c.Debug().
			Str("url", fullURL).
			Int("attempt", attempts).
			Dur("wait", wait).
			Err(err).
			Msg("retrying upstream request")
	})

	outcome := classify(fullURL, attempts, last)
	if outcome.Failed() {
		c.Debug().
			Str("url", fullURL).
			Int("status_code", outcome.Err.StatusCode).
			Int("attempts", attempts).
			Msg(outcome.Err.Error())
		return outcome
	}

	c.Debug().Msgf("%s:%d", fullURL, last.statusCode)

	return outcome
}

// retryPolicy waits a flat delay between attempts and
// stops after maxAttempts or when ctx is done
func retryPolicy(ctx context.Context, maxAttempts int, delay time.Duration) backoff.BackOff {
	var policy backoff.BackOff = &backoff.StopBackOff{}

	// WithMaxRetries treats zero as unlimited so a single attempt is a plain stop
	if maxAttempts > 1 {
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxAttempts-1))
	}

	return backoff.WithContext(policy, ctx)
}

// do makes one GET request to url, reading the whole response body
func (c *Client) do(ctx context.Context, url string, headers map[string]string) attempt {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return attempt{err: err}
	}

	request.Header.Set("Accept", "application/json")
	for name, value := range headers {
		request.Header.Set(name, value)
	}

	response, err := c.Do(request)
	if err != nil {
		return attempt{err: err}
	}

	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return attempt{err: err}
	}

	return attempt{
		statusCode: response.StatusCode,
		body:       body,
	}
}

// classify turns the last attempt of a call into an Outcome
func classify(url string, attempts int, last attempt) Outcome {
	if last.err != nil {
		return Outcome{Err: &RequestError{
			message:    last.err.Error(),
			URL:        url,
			StatusCode: DefaultErrorStatusCode,
			Attempts:   attempts,
		}}
	}

	if last.statusCode == http.StatusNotFound || isServerError(last.statusCode) || isEmptyBody(last.body) {
		return Outcome{Err: &RequestError{
			message:    DefaultErrorMessage,
			URL:        url,
			StatusCode: last.statusCode,
			Attempts:   attempts,
		}}
	}

	return Outcome{Body: decodeBody(last.body)}
}

// isEmptyBody reports whether body carries no content, either no bytes
// at all or a JSON document that is the empty string
func isEmptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}

	var value string
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return false
	}

	return value == ""
}

// decodeBody returns the body as JSON, bodies that are not
// valid JSON are passed along as a JSON string
func decodeBody(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}

	encoded, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}

	return encoded
}

func isServerError(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600
}
