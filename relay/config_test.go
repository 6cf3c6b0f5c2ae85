package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "teams-relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[msapi]
tenant_id = "test-tenant"
app_id = "test-app"
app_secret = "test-secret"
`)

	conf, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "https://graph.microsoft.com/.default", conf.MSAPI.Scope)
	require.Equal(t, "https://graph.microsoft.com/v1.0", conf.MSAPI.GraphBaseURL)
	require.Equal(t, "https://login.microsoftonline.com", conf.MSAPI.TokenBaseURL)
	require.Equal(t, ":8000", conf.HTTP.ListenAddr)
	require.Equal(t, "stderr", conf.Log.Output)
	require.Equal(t, "info", conf.Log.Severity)
	require.Zero(t, conf.RateLimit.PerMinute)
}

func TestLoadConfigMissingCredentials(t *testing.T) {
	path := writeConfigFile(t, `
[msapi]
tenant_id = "test-tenant"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
[msapi]
tenant_id = "file-tenant"
app_id = "file-app"
app_secret = "file-secret"
`)

	t.Setenv("TEAMS_RELAY_TENANT_ID", "env-tenant")
	t.Setenv("TEAMS_RELAY_APP_SECRET", "env-secret")

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "env-tenant", conf.MSAPI.TenantID)
	require.Equal(t, "file-app", conf.MSAPI.AppID)
	require.Equal(t, "env-secret", conf.MSAPI.AppSecret)
}

func TestLoadConfigSecretFromFile(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "app_secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("hunter2\n"), 0600))

	path := writeConfigFile(t, `
[msapi]
tenant_id = "test-tenant"
app_id = "test-app"
app_secret = "`+secretPath+`"
`)

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "hunter2", conf.MSAPI.AppSecret)
}

func TestExampleConfig(t *testing.T) {
	path := writeConfigFile(t, exampleConfig)

	// The example references secret and certificate files that do not exist
	// on the test host, so loading is expected to fail on the secret read,
	// not on the TOML syntax.
	_, err := LoadConfig(path)
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))
}
