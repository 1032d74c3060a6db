package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Extractor.RetryDelayMs)
	assert.Equal(t, 2, cfg.Extractor.MaxAuthRetries)
	assert.Equal(t, 30, cfg.Extractor.TimeoutSecs)
	assert.Equal(t, 60, cfg.Auth.RefreshThresholdSecs)
	assert.Equal(t, 100, cfg.Auth.MutexGraceMs)
	assert.Equal(t, 5, cfg.Quota.DefaultLimit)
	assert.Equal(t, 1000, cfg.Quota.UnlimitedCeiling)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "rosterscan.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "jobs.yaml", cfg.Jobs.Path)
	assert.Equal(t, 1500, cfg.Pipeline.SuccessDisplayMs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
extractor:
  function_url: https://func.example.com/roster-scan
  anon_key: anon-123
store:
  driver: postgres
  database_url: postgres://localhost/rosterscan
log:
  level: debug
  format: console
quota:
  unlimited_accounts:
    - vip-user
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://func.example.com/roster-scan", cfg.Extractor.FunctionURL)
	assert.Equal(t, "anon-123", cfg.Extractor.AnonKey)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"vip-user"}, cfg.Quota.UnlimitedAccounts)
	// Defaults still apply for unset values
	assert.Equal(t, 500, cfg.Extractor.RetryDelayMs)
	assert.Equal(t, 5, cfg.Quota.DefaultLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RSCAN_STORE_DRIVER", "postgres")
	t.Setenv("RSCAN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("RSCAN_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
