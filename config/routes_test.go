package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kava-labs/resource-aggregator-service/config"
	"github.com/stretchr/testify/require"
)

const testRoutesYAML = `
environments:
  local:
    apiBaseUrl: http://localhost:8080/api
    maxAttempts: 3
    retryDelayMs: 50
  prod:
    apiBaseUrl: https://api.example.com
routes:
  - name: article
    path: /articles/{id}
    resources:
      - articles/{id}
      - articles/{id}/comments?limit=10
    passQuery: true
    headers:
      Accept: application/json
    cacheTTLSeconds: 30
  - path: /home
    resources:
      - pages/home
`

func TestUnitTestParseApplicationConfig(t *testing.T) {
	appConfig, err := config.ParseApplicationConfig([]byte(testRoutesYAML))
	require.NoError(t, err)

	require.Len(t, appConfig.EnvConfig, 2)
	require.Equal(t, "http://localhost:8080/api", appConfig.EnvConfig["local"].APIBaseURL)
	require.Equal(t, 3, appConfig.EnvConfig["local"].Attempts())
	require.Equal(t, 50*time.Millisecond, appConfig.EnvConfig["local"].RetryDelay())

	require.Len(t, appConfig.Routes, 2)
	article := appConfig.Routes[0]
	require.Equal(t, "article", article.Name)
	require.Equal(t, []string{"articles/{id}", "articles/{id}/comments?limit=10"}, article.Resources)
	require.True(t, article.PassQuery)
	require.Equal(t, map[string]string{"Accept": "application/json"}, article.Headers)
	require.Equal(t, 30*time.Second, article.CacheTTL(time.Minute))

	home := appConfig.Routes[1]
	require.Equal(t, "/home", home.Name, "name should default to path")
	require.False(t, home.PassQuery)
	require.Equal(t, time.Minute, home.CacheTTL(time.Minute))
}

func TestUnitTestEnvironmentConfigDefaults(t *testing.T) {
	envConfig := config.EnvironmentConfig{APIBaseURL: "http://api"}

	require.Equal(t, config.DEFAULT_MAX_ATTEMPTS, envConfig.Attempts())
	require.Equal(t, config.DEFAULT_RETRY_DELAY_MS*time.Millisecond, envConfig.RetryDelay())
}

func TestUnitTestLoadApplicationConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRoutesYAML), 0o600))

	appConfig, err := config.LoadApplicationConfig(path)
	require.NoError(t, err)
	require.Len(t, appConfig.Routes, 2)

	_, err = config.LoadApplicationConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestUnitTestValidateApplicationConfig(t *testing.T) {
	appConfig, err := config.ParseApplicationConfig([]byte(testRoutesYAML))
	require.NoError(t, err)

	t.Run("valid config for known environment", func(t *testing.T) {
		require.NoError(t, config.ValidateApplicationConfig(appConfig, "local"))
	})

	t.Run("unknown environment", func(t *testing.T) {
		err := config.ValidateApplicationConfig(appConfig, "staging")
		require.ErrorIs(t, err, config.ErrUnknownEnvironment)
	})

	t.Run("no routes", func(t *testing.T) {
		err := config.ValidateApplicationConfig(config.ApplicationConfig{
			EnvConfig: appConfig.EnvConfig,
		}, "local")
		require.ErrorIs(t, err, config.ErrNoRoutes)
	})

	t.Run("malformed resource template", func(t *testing.T) {
		broken := config.ApplicationConfig{
			EnvConfig: appConfig.EnvConfig,
			Routes: []config.RouteOptions{
				{Name: "broken", Path: "/broken", Resources: []string{"users/{id"}},
			},
		}
		err := config.ValidateApplicationConfig(broken, "local")
		require.ErrorIs(t, err, config.ErrInvalidRouteTemplate)
	})

	t.Run("duplicate paths", func(t *testing.T) {
		duplicated := config.ApplicationConfig{
			EnvConfig: appConfig.EnvConfig,
			Routes: []config.RouteOptions{
				{Name: "a", Path: "/same"},
				{Name: "b", Path: "/same"},
			},
		}
		err := config.ValidateApplicationConfig(duplicated, "local")
		require.ErrorContains(t, err, "duplicate route path /same")
	})

	t.Run("negative retry settings", func(t *testing.T) {
		negative := config.ApplicationConfig{
			EnvConfig: map[string]config.EnvironmentConfig{
				"local": {APIBaseURL: "http://api", MaxAttempts: -1, RetryDelayMs: -5},
			},
			Routes: appConfig.Routes,
		}
		err := config.ValidateApplicationConfig(negative, "local")
		require.ErrorContains(t, err, "invalid maxAttempts -1")
		require.ErrorContains(t, err, "invalid retryDelayMs -5")
	})
}
