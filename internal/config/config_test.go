package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://us.prairielearn.com", cfg.Portal.BaseURL)
	assert.Equal(t, "/pl", cfg.Portal.HomePath)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "prairieTrack-", cfg.Store.Prefix)
	assert.Equal(t, filepath.Join("prairie-track", "cache.db"), filepath.Join(filepath.Base(filepath.Dir(cfg.Store.Path)), filepath.Base(cfg.Store.Path)))
	assert.Equal(t, 3*time.Hour, cfg.Refresh.StaleAfter)
	assert.Equal(t, 500*time.Millisecond, cfg.Refresh.ReloadDelay)
	assert.Zero(t, cfg.Refresh.FetchTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Watch.Interval)
	assert.False(t, cfg.Notify.RabbitMQ.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_PL_COOKIE", "pl_authn=abc123")
	t.Setenv("TEST_PG_PASSWORD", "secret")

	path := writeConfig(t, `
portal:
  base_url: https://ca.prairielearn.com
  cookie: ${TEST_PL_COOKIE}
  timezone: UTC
  retry:
    max_attempts: 5
store:
  driver: postgres
  database:
    host: db
    user: tracker
    password: ${TEST_PG_PASSWORD}
    dbname: tracker
refresh:
  stale_after: 1h
  fetch_timeout: 20s
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://ca.prairielearn.com", cfg.Portal.BaseURL)
	assert.Equal(t, "pl_authn=abc123", cfg.Portal.Cookie)
	assert.Equal(t, 5, cfg.Portal.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Portal.Retry.InitialBackoff)
	assert.Equal(t, time.Hour, cfg.Refresh.StaleAfter)
	assert.Equal(t, 20*time.Second, cfg.Refresh.FetchTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t,
		"host=db port=5432 user=tracker password=secret dbname=tracker sslmode=disable",
		cfg.Store.DataSource(),
	)

	loc, err := cfg.Portal.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_CookieFromEnvironment(t *testing.T) {
	t.Setenv("PRAIRIELEARN_COOKIE", "pl_authn=fromenv")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pl_authn=fromenv", cfg.Portal.Cookie)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "store:\n  driver: redis\n"},
		{name: "negative fetch timeout", body: "refresh:\n  fetch_timeout: -1s\n"},
		{name: "bad timezone", body: "portal:\n  timezone: Mars/Olympus\n"},
		{name: "invalid yaml", body: "portal: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStoreConfig_DataSource(t *testing.T) {
	assert.Equal(t, "/tmp/c.db", StoreConfig{Driver: "sqlite", Path: "/tmp/c.db"}.DataSource())
	assert.Equal(t, "file::memory:", StoreConfig{Driver: "sqlite", Path: "/tmp/c.db", DSN: "file::memory:"}.DataSource())
	assert.Equal(t, "postgres://x", StoreConfig{Driver: "postgres", DSN: "postgres://x"}.DataSource())
	assert.Empty(t, StoreConfig{Driver: "memory"}.DataSource())
}
