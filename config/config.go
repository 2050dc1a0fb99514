// package config provides functions and values
// for reading and validating resource aggregator service configuration
package config

import (
	"os"
	"strconv"
	"time"
)

// Config wraps the service level settings read from the environment,
// route and upstream environment definitions live in the routes file
// pointed to by RoutesConfigPath
type Config struct {
	LogLevel         string
	ProxyServicePort string
	RoutesConfigPath string
	Environment      string

	UpstreamTimeout                   time.Duration
	UpstreamMaxIdleConnectionsPerHost int
	HTTPReadTimeoutSeconds            int64
	HTTPWriteTimeoutSeconds           int64
	TracingEnabled                    bool

	CacheEnabled     bool
	RedisEndpointURL string
	RedisPassword    string
	CacheTTL         time.Duration
	CachePrefix      string
	CacheNidHeader   string

	MetricCollectionEnabled                   bool
	DatabaseName                              string
	DatabaseEndpointURL                       string
	DatabaseUserName                          string
	DatabasePassword                          string
	DatabaseReadTimeoutSeconds                int64
	DatabaseSSLEnabled                        bool
	DatabaseQueryLoggingEnabled               bool
	RunDatabaseMigrations                     bool
	MetricPruningEnabled                      bool
	MetricPruningRoutineInterval              time.Duration
	MetricPruningMaxRequestMetricsHistoryDays int
}

const (
	LOG_LEVEL_ENVIRONMENT_KEY                                       = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                               = "INFO"
	PROXY_SERVICE_PORT_ENVIRONMENT_KEY                              = "PROXY_SERVICE_PORT"
	DEFAULT_PROXY_SERVICE_PORT                                      = "7777"
	ROUTES_CONFIG_PATH_ENVIRONMENT_KEY                              = "ROUTES_CONFIG_PATH"
	DEFAULT_ROUTES_CONFIG_PATH                                      = "routes.yaml"
	ENVIRONMENT_ENVIRONMENT_KEY                                     = "ENVIRONMENT"
	DEFAULT_ENVIRONMENT                                             = "local"
	UPSTREAM_TIMEOUT_SECONDS_ENVIRONMENT_KEY                        = "UPSTREAM_TIMEOUT_SECONDS"
	DEFAULT_UPSTREAM_TIMEOUT_SECONDS                                = 30
	UPSTREAM_MAX_IDLE_CONNECTIONS_PER_HOST_ENVIRONMENT_KEY          = "UPSTREAM_MAX_IDLE_CONNECTIONS_PER_HOST"
	DEFAULT_UPSTREAM_MAX_IDLE_CONNECTIONS_PER_HOST                  = 64
	HTTP_READ_TIMEOUT_ENVIRONMENT_KEY                               = "HTTP_READ_TIMEOUT_SECONDS"
	DEFAULT_HTTP_READ_TIMEOUT                                       = 30
	HTTP_WRITE_TIMEOUT_ENVIRONMENT_KEY                              = "HTTP_WRITE_TIMEOUT_SECONDS"
	DEFAULT_HTTP_WRITE_TIMEOUT                                      = 60
	TRACING_ENABLED_ENVIRONMENT_KEY                                 = "TRACING_ENABLED"
	CACHE_ENABLED_ENVIRONMENT_KEY                                   = "CACHE_ENABLED"
	REDIS_ENDPOINT_URL_ENVIRONMENT_KEY                              = "REDIS_ENDPOINT_URL"
	REDIS_PASSWORD_ENVIRONMENT_KEY                                  = "REDIS_PASSWORD"
	CACHE_TTL_ENVIRONMENT_KEY                                       = "CACHE_TTL_SECONDS"
	DEFAULT_CACHE_TTL_SECONDS                                       = 600
	CACHE_PREFIX_ENVIRONMENT_KEY                                    = "CACHE_PREFIX"
	DEFAULT_CACHE_PREFIX                                            = "aggregator"
	CACHE_NID_HEADER_ENVIRONMENT_KEY                                = "CACHE_NID_HEADER"
	DEFAULT_CACHE_NID_HEADER                                        = "X-Nid"
	METRIC_COLLECTION_ENABLED_ENVIRONMENT_KEY                       = "METRIC_COLLECTION_ENABLED"
	DATABASE_NAME_ENVIRONMENT_KEY                                   = "DATABASE_NAME"
	DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY                           = "DATABASE_ENDPOINT_URL"
	DATABASE_USERNAME_ENVIRONMENT_KEY                               = "DATABASE_USERNAME"
	DATABASE_PASSWORD_ENVIRONMENT_KEY                               = "DATABASE_PASSWORD"
	DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY                   = "DATABASE_READ_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_READ_TIMEOUT_SECONDS                           = 60
	DATABASE_SSL_ENABLED_ENVIRONMENT_KEY                            = "DATABASE_SSL_ENABLED"
	DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY                  = "DATABASE_QUERY_LOGGING_ENABLED"
	RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY                         = "RUN_DATABASE_MIGRATIONS"
	METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY                          = "METRIC_PRUNING_ENABLED"
	METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY         = "METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS                 = 3600
	METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY = "METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS"
	DEFAULT_METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS         = 45
)

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultBool fetches a boolean environment variable value, or if not set
// or not parseable as a bool returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultInt fetches an int environment variable value, or if not set
// or not parseable as an int returns the fallback value
func EnvOrDefaultInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	return Config{
		LogLevel:                          EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		ProxyServicePort:                  EnvOrDefault(PROXY_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_PROXY_SERVICE_PORT),
		RoutesConfigPath:                  EnvOrDefault(ROUTES_CONFIG_PATH_ENVIRONMENT_KEY, DEFAULT_ROUTES_CONFIG_PATH),
		Environment:                       EnvOrDefault(ENVIRONMENT_ENVIRONMENT_KEY, DEFAULT_ENVIRONMENT),
		UpstreamTimeout:                   time.Duration(EnvOrDefaultInt(UPSTREAM_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_UPSTREAM_TIMEOUT_SECONDS)) * time.Second,
		UpstreamMaxIdleConnectionsPerHost: EnvOrDefaultInt(UPSTREAM_MAX_IDLE_CONNECTIONS_PER_HOST_ENVIRONMENT_KEY, DEFAULT_UPSTREAM_MAX_IDLE_CONNECTIONS_PER_HOST),
		HTTPReadTimeoutSeconds:            int64(EnvOrDefaultInt(HTTP_READ_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_HTTP_READ_TIMEOUT)),
		HTTPWriteTimeoutSeconds:           int64(EnvOrDefaultInt(HTTP_WRITE_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_HTTP_WRITE_TIMEOUT)),
		TracingEnabled:                    EnvOrDefaultBool(TRACING_ENABLED_ENVIRONMENT_KEY, false),
		CacheEnabled:                      EnvOrDefaultBool(CACHE_ENABLED_ENVIRONMENT_KEY, false),
		RedisEndpointURL:                  os.Getenv(REDIS_ENDPOINT_URL_ENVIRONMENT_KEY),
		RedisPassword:                     os.Getenv(REDIS_PASSWORD_ENVIRONMENT_KEY),
		CacheTTL:                          time.Duration(EnvOrDefaultInt(CACHE_TTL_ENVIRONMENT_KEY, DEFAULT_CACHE_TTL_SECONDS)) * time.Second,
		CachePrefix:                       EnvOrDefault(CACHE_PREFIX_ENVIRONMENT_KEY, DEFAULT_CACHE_PREFIX),
		CacheNidHeader:                    EnvOrDefault(CACHE_NID_HEADER_ENVIRONMENT_KEY, DEFAULT_CACHE_NID_HEADER),
		MetricCollectionEnabled:           EnvOrDefaultBool(METRIC_COLLECTION_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseName:                      os.Getenv(DATABASE_NAME_ENVIRONMENT_KEY),
		DatabaseEndpointURL:               os.Getenv(DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY),
		DatabaseUserName:                  os.Getenv(DATABASE_USERNAME_ENVIRONMENT_KEY),
		DatabasePassword:                  os.Getenv(DATABASE_PASSWORD_ENVIRONMENT_KEY),
		DatabaseReadTimeoutSeconds:        int64(EnvOrDefaultInt(DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_READ_TIMEOUT_SECONDS)),
		DatabaseSSLEnabled:                EnvOrDefaultBool(DATABASE_SSL_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseQueryLoggingEnabled:       EnvOrDefaultBool(DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY, false),
		RunDatabaseMigrations:             EnvOrDefaultBool(RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY, false),
		MetricPruningEnabled:              EnvOrDefaultBool(METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, false),
		MetricPruningRoutineInterval:      time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)) * time.Second,
		MetricPruningMaxRequestMetricsHistoryDays: EnvOrDefaultInt(METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS),
	}
}
