package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	settings, err := loadFrom(viper.New(), writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, DefaultEBirdBaseURL, settings.EBird.BaseURL)
	assert.Equal(t, 10*time.Second, settings.EBird.Timeout)
	assert.Equal(t, 2, settings.EBird.Retries)
	assert.Equal(t, time.Second, settings.EBird.RetryDelay)
	assert.Equal(t, 1000, settings.Cache.MaxEntries)
	assert.True(t, settings.Macaulay.Enabled)
	assert.Equal(t, DefaultMacaulayBaseURL, settings.Macaulay.BaseURL)
	assert.Equal(t, 5*time.Second, settings.Macaulay.Timeout)
	assert.Equal(t, 50, settings.Aggregator.MaxChecklists)
	assert.Equal(t, 30, settings.Server.RateLimit)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
ebird:
  apikey: file-key
  timeout: 5s
  retries: 4
cache:
  maxentries: 10
aggregator:
  maxchecklists: 20
  concurrency: 4
logging:
  default_level: debug
  module_levels:
    ebird: trace
`)

	settings, err := loadFrom(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", settings.EBird.APIKey)
	assert.Equal(t, 5*time.Second, settings.EBird.Timeout)
	assert.Equal(t, 4, settings.EBird.Retries)
	assert.Equal(t, 10, settings.Cache.MaxEntries)
	assert.Equal(t, 20, settings.Aggregator.MaxChecklists)
	assert.Equal(t, 4, settings.Aggregator.Concurrency)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.Equal(t, "trace", settings.Logging.ModuleLevels["ebird"])
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("EBIRD_API_KEY", "env-key")
	t.Setenv("LIFER_DATABASE_PATH", "/tmp/lifer-test.db")

	settings, err := loadFrom(viper.New(), writeConfig(t, "ebird:\n  apikey: file-key\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", settings.EBird.APIKey)
	assert.Equal(t, "/tmp/lifer-test.db", settings.Database.Path)
}

func TestMySQLSettings(t *testing.T) {
	t.Setenv("LIFER_MYSQL_PASSWORD", "secret")

	settings, err := loadFrom(viper.New(), writeConfig(t, `
database:
  type: mysql
  path: ""
  mysql:
    host: db.internal
    username: lifer
`))
	require.NoError(t, err)

	assert.Equal(t, "mysql", settings.Database.Type)
	assert.Equal(t, "db.internal", settings.Database.MySQL.Host)
	assert.Equal(t, "3306", settings.Database.MySQL.Port)
	assert.Equal(t, "lifer", settings.Database.MySQL.Database)
	assert.Equal(t, "secret", settings.Database.MySQL.Password)
	assert.Equal(t, 10*time.Second, settings.Database.MySQL.Timeout)
}

func TestSecretResolution(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "ebird_key")
	require.NoError(t, os.WriteFile(keyFile, []byte("key-from-file\n"), 0o600))
	t.Setenv("LIFER_TEST_DB_PASSWORD", "expanded")

	settings, err := loadFrom(viper.New(), writeConfig(t, `
ebird:
  apikey: ignored
  apikeyfile: `+keyFile+`
database:
  mysql:
    password: ${LIFER_TEST_DB_PASSWORD}
`))
	require.NoError(t, err)

	assert.Equal(t, "key-from-file", settings.EBird.APIKey)
	assert.Equal(t, "expanded", settings.Database.MySQL.Password)
}

func TestSecretResolutionFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing key file", "ebird:\n  apikeyfile: /nonexistent/lifer/key\n", "ebird.apikey"},
		{"unset variable", "ebird:\n  apikey: ${LIFER_TEST_UNSET_KEY}\n", "LIFER_TEST_UNSET_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFrom(viper.New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPrefixedEnvWinsOverAlias(t *testing.T) {
	t.Setenv("LIFER_EBIRD_APIKEY", "primary")
	t.Setenv("EBIRD_API_KEY", "alias")

	settings, err := loadFrom(viper.New(), writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "primary", settings.EBird.APIKey)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"negative retries", "ebird:\n  retries: -1\n", "ebird.retries"},
		{"bad base url", "ebird:\n  baseurl: not a url\n", "ebird.baseurl"},
		{"zero cache", "cache:\n  maxentries: 0\n", "cache.maxentries"},
		{"bad macaulay url", "macaulay:\n  baseurl: not a url\n", "macaulay.baseurl"},
		{"bad log level", "logging:\n  default_level: loud\n", "logging.default_level"},
		{"unknown database type", "database:\n  type: postgres\n", "database.type"},
		{"sqlite without path", "database:\n  path: \"\"\n", "database.path"},
		{"file output without path", "logging:\n  file_output:\n    enabled: true\n    path: \"\"\n", "file_output.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFrom(viper.New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := loadFrom(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	settings, err := DefaultSettings()
	require.NoError(t, err)
	settings.EBird.Retries = 3
	settings.EBird.RetryDelay = 250 * time.Millisecond
	settings.Database.Path = "round-trip.db"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, settings))

	loaded, err := loadFrom(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.EBird.Retries)
	assert.Equal(t, 250*time.Millisecond, loaded.EBird.RetryDelay)
	assert.Equal(t, "round-trip.db", loaded.Database.Path)
	assert.Equal(t, settings.Server.Listen, loaded.Server.Listen)
}
