package service_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/resource-aggregator-service/clients/cache"
	"github.com/kava-labs/resource-aggregator-service/clients/database"
	"github.com/kava-labs/resource-aggregator-service/clients/database/noop"
	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/kava-labs/resource-aggregator-service/logging"
	"github.com/kava-labs/resource-aggregator-service/service"
	"github.com/kava-labs/resource-aggregator-service/service/cachemdw"
)

var (
	testDefaultContext = context.TODO()

	dummyLogger = func() *logging.ServiceLogger {
		logger, err := logging.New("ERROR")

		if err != nil {
			panic(err)
		}

		return &logger
	}()
)

// recordingDatabase keeps saved metrics in memory
type recordingDatabase struct {
	*noop.Noop

	mu      sync.Mutex
	metrics []database.AggregatedRequestMetric
}

func (r *recordingDatabase) SaveAggregatedRequestMetric(ctx context.Context, metric *database.AggregatedRequestMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics = append(r.metrics, *metric)
	return nil
}

func (r *recordingDatabase) CountAggregatedRequestMetrics(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.metrics)), nil
}

func (r *recordingDatabase) saved() []database.AggregatedRequestMetric {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]database.AggregatedRequestMetric(nil), r.metrics...)
}

// newUpstream starts an upstream api serving a few fixed resources
// and counting the calls made to it
func newUpstream(t *testing.T) (*httptest.Server, *int32) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		switch {
		case r.URL.Path == "/users/42":
			w.Write([]byte(`{"id":42,"name":"ada"}`))
		case r.URL.Path == "/users/42/posts":
			w.Write([]byte(`[{"id":1,"page":"` + r.URL.Query().Get("page") + `"}]`))
		case strings.HasPrefix(r.URL.Path, "/nodes/"):
			w.Write([]byte(`{"nid":"` + strings.TrimPrefix(r.URL.Path, "/nodes/") + `"}`))
		case r.URL.Path == "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func newAppConfig(apiBaseURL string) config.ApplicationConfig {
	return config.ApplicationConfig{
		EnvConfig: map[string]config.EnvironmentConfig{
			"test": {APIBaseURL: apiBaseURL, MaxAttempts: 2, RetryDelayMs: 1},
		},
		Routes: []config.RouteOptions{
			{Name: "user", Path: "/users/{id}", Resources: []string{"users/{id}"}},
			{Name: "profile", Path: "/profile/{id}", Resources: []string{"users/{id}", "users/{id}/posts"}, PassQuery: true},
			{Name: "node", Path: "/node", Resources: []string{"nodes/{nid}"}},
			{Name: "broken", Path: "/broken/{id}", Resources: []string{"users/{id}", "broken"}},
			{Name: "empty", Path: "/empty"},
		},
	}
}

func newServiceConfig(cacheEnabled bool) config.Config {
	return config.Config{
		ProxyServicePort:                  "7777",
		Environment:                       "test",
		UpstreamTimeout:                   5 * time.Second,
		UpstreamMaxIdleConnectionsPerHost: 8,
		CacheEnabled:                      cacheEnabled,
		CacheTTL:                          time.Minute,
		CachePrefix:                       "aggregator",
		CacheNidHeader:                    "X-Nid",
	}
}

func newTestService(t *testing.T, serviceConfig config.Config, db database.MetricsDatabase, cacheClient cache.Cache) (*httptest.Server, *int32) {
	upstream, calls := newUpstream(t)

	aggregatorService, err := service.NewWithClients(serviceConfig, newAppConfig(upstream.URL), db, cacheClient, dummyLogger)
	require.NoError(t, err)

	server := httptest.NewServer(aggregatorService.Handler())
	t.Cleanup(server.Close)

	return server, calls
}

func get(t *testing.T, url string, headers map[string]string) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestUnitTestNewWithValidParamsCreatesAggregatorServiceWithoutError(t *testing.T) {
	_, err := service.New(testDefaultContext, newServiceConfig(false), newAppConfig("http://upstream.test"), dummyLogger)

	assert.Nil(t, err)
}

func TestUnitTestNewWithInvalidRoutesConfigReturnsError(t *testing.T) {
	appConfig := newAppConfig("http://upstream.test")
	appConfig.Routes = nil

	_, err := service.NewWithClients(newServiceConfig(false), appConfig, noop.New(), cache.NewInMemoryCache(), dummyLogger)

	require.ErrorIs(t, err, config.ErrNoRoutes)
}

func TestUnitTestServiceServesAggregatedRoutes(t *testing.T) {
	server, _ := newTestService(t, newServiceConfig(false), noop.New(), cache.NewInMemoryCache())

	t.Run("single resource is returned as is", func(t *testing.T) {
		resp, body := get(t, server.URL+"/users/42", nil)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		require.NotEmpty(t, resp.Header.Get(service.RequestIDHeaderKey))
		require.JSONEq(t, `{"id":42,"name":"ada"}`, body)
	})

	t.Run("several resources are combined in order with the query passed along", func(t *testing.T) {
		resp, body := get(t, server.URL+"/profile/42?page=3", nil)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `[{"id":42,"name":"ada"},[{"id":1,"page":"3"}]]`, body)
	})

	t.Run("nid header is available to templates", func(t *testing.T) {
		resp, body := get(t, server.URL+"/node", map[string]string{"X-Nid": "7"})

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"nid":"7"}`, body)
	})

	t.Run("route without resources", func(t *testing.T) {
		resp, body := get(t, server.URL+"/empty", nil)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `[]`, body)
	})

	t.Run("any failed resource fails the route", func(t *testing.T) {
		resp, body := get(t, server.URL+"/broken/42", nil)

		require.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var errResponse service.ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(body), &errResponse))
		require.Equal(t, []string{"some requests could not be completed"}, errResponse.Errors)
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, _ := get(t, server.URL+"/unknown", nil)

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUnitTestServiceServesRepeatedRequestsFromCache(t *testing.T) {
	inMemoryCache := cache.NewInMemoryCache()
	server, calls := newTestService(t, newServiceConfig(true), noop.New(), inMemoryCache)

	resp, body := get(t, server.URL+"/users/42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, cachemdw.CacheMissHeaderValue, resp.Header.Get(cachemdw.CacheHeaderKey))
	require.Equal(t, int32(1), atomic.LoadInt32(calls))

	resp, cachedBody := get(t, server.URL+"/users/42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, cachemdw.CacheHitHeaderValue, resp.Header.Get(cachemdw.CacheHeaderKey))
	require.JSONEq(t, body, cachedBody)
	require.Equal(t, int32(1), atomic.LoadInt32(calls), "cached route should not reach the upstream")

	t.Run("failures are not cached", func(t *testing.T) {
		resp, _ := get(t, server.URL+"/broken/42", nil)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)

		resp, _ = get(t, server.URL+"/broken/42", nil)
		require.Equal(t, cachemdw.CacheMissHeaderValue, resp.Header.Get(cachemdw.CacheHeaderKey))
	})
}

func TestUnitTestServiceSavesRequestMetrics(t *testing.T) {
	db := &recordingDatabase{Noop: noop.New()}
	server, _ := newTestService(t, newServiceConfig(false), db, cache.NewInMemoryCache())

	resp, _ := get(t, server.URL+"/profile/42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, server.URL+"/broken/42", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(db.saved()) == 2
	}, time.Second, 10*time.Millisecond)

	metricsByRoute := make(map[string]database.AggregatedRequestMetric)
	for _, metric := range db.saved() {
		metricsByRoute[metric.RouteName] = metric
	}

	profile := metricsByRoute["profile"]
	require.Equal(t, "/profile/42", profile.RequestPath)
	require.Equal(t, 2, profile.ResourceCount)
	require.Equal(t, http.StatusOK, profile.StatusCode)
	require.False(t, profile.CacheHit)
	require.NotEmpty(t, profile.RequestID)
	require.False(t, profile.RequestTime.IsZero())

	require.Equal(t, http.StatusBadGateway, metricsByRoute["broken"].StatusCode)

	t.Run("database status reports the metric count", func(t *testing.T) {
		resp, body := get(t, server.URL+"/status/database", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status service.DatabaseStatusResponse
		require.NoError(t, json.Unmarshal([]byte(body), &status))
		require.Equal(t, int64(2), status.TotalAggregatedRequestMetrics)
	})
}

func TestUnitTestOperationalEndpoints(t *testing.T) {
	server, _ := newTestService(t, newServiceConfig(true), noop.New(), cache.NewInMemoryCache())

	resp, body := get(t, server.URL+"/healthcheck", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "aggregator service is healthy", body)

	resp, body = get(t, server.URL+"/servicecheck", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "aggregator service is in service", body)
}

func TestUnitTestServeDrainsInFlightRequestsBeforeReturning(t *testing.T) {
	requested := make(chan struct{})
	release := make(chan struct{})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(requested)
		<-release
		w.Write([]byte(`{"slow":true}`))
	}))
	t.Cleanup(upstream.Close)

	appConfig := config.ApplicationConfig{
		EnvConfig: map[string]config.EnvironmentConfig{
			"test": {APIBaseURL: upstream.URL, MaxAttempts: 1, RetryDelayMs: 1},
		},
		Routes: []config.RouteOptions{
			{Name: "slow", Path: "/slow", Resources: []string{"slow"}},
		},
	}

	aggregatorService, err := service.NewWithClients(newServiceConfig(false), appConfig, noop.New(), cache.NewInMemoryCache(), dummyLogger)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testDefaultContext)
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- aggregatorService.Serve(ctx, listener, 5*time.Second)
	}()

	type result struct {
		status int
		body   string
		err    error
	}
	responses := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + listener.Addr().String() + "/slow")
		if err != nil {
			responses <- result{err: err}
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		responses <- result{status: resp.StatusCode, body: string(body), err: err}
	}()

	select {
	case <-requested:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the upstream")
	}

	cancel()

	select {
	case err := <-served:
		t.Fatalf("serve returned with a request in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case res := <-responses:
		require.NoError(t, res.err)
		require.Equal(t, http.StatusOK, res.status)
		require.JSONEq(t, `{"slow":true}`, res.body)
	case <-time.After(5 * time.Second):
		t.Fatal("in flight request was not completed")
	}

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the drain")
	}
}

func TestUnitTestServeReturnsListenerErrorsWithoutWaitingForShutdown(t *testing.T) {
	aggregatorService, err := service.NewWithClients(newServiceConfig(false), newAppConfig("http://upstream.test"), noop.New(), cache.NewInMemoryCache(), dummyLogger)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, listener.Close())

	err = aggregatorService.Serve(testDefaultContext, listener, time.Second)

	require.Error(t, err)
	require.NotErrorIs(t, err, http.ErrServerClosed)
}

// gatedDatabase holds every metric save until release is closed
type gatedDatabase struct {
	recordingDatabase

	release chan struct{}
}

func (g *gatedDatabase) SaveAggregatedRequestMetric(ctx context.Context, metric *database.AggregatedRequestMetric) error {
	<-g.release

	return g.recordingDatabase.SaveAggregatedRequestMetric(ctx, metric)
}

func TestUnitTestServeWaitsForPendingMetricSaves(t *testing.T) {
	upstream, _ := newUpstream(t)
	db := &gatedDatabase{recordingDatabase: recordingDatabase{Noop: noop.New()}, release: make(chan struct{})}

	aggregatorService, err := service.NewWithClients(newServiceConfig(false), newAppConfig(upstream.URL), db, cache.NewInMemoryCache(), dummyLogger)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testDefaultContext)
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- aggregatorService.Serve(ctx, listener, 5*time.Second)
	}()

	resp, body := get(t, "http://"+listener.Addr().String()+"/users/42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"id":42,"name":"ada"}`, body)

	cancel()

	select {
	case err := <-served:
		t.Fatalf("serve returned with a metric save pending: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(db.release)

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the metric was saved")
	}

	require.Len(t, db.saved(), 1)
	require.Equal(t, "user", db.saved()[0].RouteName)
}

func TestUnitTestServeGivesUpOnMetricSavesAfterShutdownTimeout(t *testing.T) {
	upstream, _ := newUpstream(t)
	db := &gatedDatabase{recordingDatabase: recordingDatabase{Noop: noop.New()}, release: make(chan struct{})}
	t.Cleanup(func() { close(db.release) })

	aggregatorService, err := service.NewWithClients(newServiceConfig(false), newAppConfig(upstream.URL), db, cache.NewInMemoryCache(), dummyLogger)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testDefaultContext)
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- aggregatorService.Serve(ctx, listener, 50*time.Millisecond)
	}()

	resp, _ := get(t, "http://"+listener.Addr().String()+"/users/42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-served:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not give up after the shutdown timeout")
	}
}
