package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yosida95/uritemplate/v3"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_MAX_ATTEMPTS   = 2
	DEFAULT_RETRY_DELAY_MS = 100
)

var (
	ErrNoRoutes             = errors.New("routes config must define at least one route")
	ErrUnknownEnvironment   = errors.New("environment is not defined in routes config")
	ErrInvalidRouteTemplate = errors.New("invalid resource template")
)

// EnvironmentConfig holds the upstream api settings
// for a single deployment environment
type EnvironmentConfig struct {
	APIBaseURL   string `yaml:"apiBaseUrl"`
	MaxAttempts  int    `yaml:"maxAttempts"`
	RetryDelayMs int    `yaml:"retryDelayMs"`
}

// Attempts returns the total number of attempts allowed for a single
// upstream call, falling back to DEFAULT_MAX_ATTEMPTS when unset
func (ec EnvironmentConfig) Attempts() int {
	if ec.MaxAttempts <= 0 {
		return DEFAULT_MAX_ATTEMPTS
	}
	return ec.MaxAttempts
}

// RetryDelay returns the flat delay between upstream call attempts,
// a zero or negative value is treated as unset
func (ec EnvironmentConfig) RetryDelay() time.Duration {
	if ec.RetryDelayMs <= 0 {
		return DEFAULT_RETRY_DELAY_MS * time.Millisecond
	}
	return time.Duration(ec.RetryDelayMs) * time.Millisecond
}

// RouteOptions describes one inbound route and the upstream
// resources which are aggregated to build its response
type RouteOptions struct {
	Name string `yaml:"name"`
	// Path is a chi route pattern, e.g. /articles/{id}
	Path string `yaml:"path"`
	// Resources are RFC 6570 templates expanded with the route params
	Resources []string          `yaml:"resources"`
	PassQuery bool              `yaml:"passQuery"`
	Headers   map[string]string `yaml:"headers"`
	// CacheTTLSeconds overrides the service wide cache ttl when positive
	CacheTTLSeconds int `yaml:"cacheTTLSeconds"`
}

// CacheTTL returns the route specific cache ttl or fallback if none is set
func (ro RouteOptions) CacheTTL(fallback time.Duration) time.Duration {
	if ro.CacheTTLSeconds > 0 {
		return time.Duration(ro.CacheTTLSeconds) * time.Second
	}
	return fallback
}

// ApplicationConfig is the routes file contents, the per environment
// upstream settings plus every route served by the service
type ApplicationConfig struct {
	EnvConfig map[string]EnvironmentConfig `yaml:"environments"`
	Routes    []RouteOptions               `yaml:"routes"`
}

// ParseApplicationConfig decodes a yaml encoded routes file
// filling in route names that were left empty
func ParseApplicationConfig(data []byte) (ApplicationConfig, error) {
	var appConfig ApplicationConfig

	if err := yaml.Unmarshal(data, &appConfig); err != nil {
		return appConfig, fmt.Errorf("error parsing routes config: %w", err)
	}

	for i := range appConfig.Routes {
		if appConfig.Routes[i].Name == "" {
			appConfig.Routes[i].Name = appConfig.Routes[i].Path
		}
	}

	return appConfig, nil
}

// LoadApplicationConfig reads and parses the routes file found at path
func LoadApplicationConfig(path string) (ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ApplicationConfig{}, fmt.Errorf("error reading routes config %s: %w", path, err)
	}

	return ParseApplicationConfig(data)
}

// ValidateApplicationConfig validates the routes file contents against the
// environment the service is running in, returning all problems found joined
// into a single error or nil if the config is valid
func ValidateApplicationConfig(appConfig ApplicationConfig, environment string) error {
	var allErrs error

	envConfig, ok := appConfig.EnvConfig[environment]
	if !ok {
		allErrs = errors.Join(allErrs, fmt.Errorf("%w: %s", ErrUnknownEnvironment, environment))
	} else if envConfig.APIBaseURL == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid apiBaseUrl for environment %s, must not be empty", environment))
	}

	for name, ec := range appConfig.EnvConfig {
		if ec.MaxAttempts < 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid maxAttempts %d for environment %s, must not be negative", ec.MaxAttempts, name))
		}
		if ec.RetryDelayMs < 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid retryDelayMs %d for environment %s, must not be negative", ec.RetryDelayMs, name))
		}
	}

	if len(appConfig.Routes) == 0 {
		return errors.Join(allErrs, ErrNoRoutes)
	}

	seenPaths := make(map[string]bool, len(appConfig.Routes))
	for _, route := range appConfig.Routes {
		if route.Path == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid path for route %s, must not be empty", route.Name))
			continue
		}
		if seenPaths[route.Path] {
			allErrs = errors.Join(allErrs, fmt.Errorf("duplicate route path %s", route.Path))
		}
		seenPaths[route.Path] = true

		for _, resource := range route.Resources {
			if _, err := uritemplate.New(resource); err != nil {
				allErrs = errors.Join(allErrs, fmt.Errorf("%w %q for route %s: %s", ErrInvalidRouteTemplate, resource, route.Name, err))
			}
		}
	}

	return allErrs
}
