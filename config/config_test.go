package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SELLFOX_CLIENT_ID", "SELLFOX_CLIENT_SECRET", "API_BASE_URL", "DATABASE_URL",
		"ENVIRONMENT", "MAX_RETRY_ATTEMPTS", "SYNC_BATCH_SIZE", "SYNC_TIMEOUT", "RATE_LIMIT_DELAY",
	} {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "config.yaml", `
api:
  base_url: https://yaml.example.com
  client_id: yaml-id
  client_secret: yaml-secret
  timeout: 45s
sync:
  batch_size: 150
  product_analytics:
    daily_sync_time: "01:30"
database:
  host: db.internal
  pool_size: 7
`)
	envPath := writeFile(t, dir, ".env", "SELLFOX_CLIENT_ID=dotenv-id\nSYNC_BATCH_SIZE=250\n")
	t.Cleanup(func() {
		os.Unsetenv("SELLFOX_CLIENT_ID")
		os.Unsetenv("SYNC_BATCH_SIZE")
	})
	t.Setenv("SYNC_BATCH_SIZE", "300")

	cfg, err := Load(yamlPath, envPath)
	require.NoError(t, err)

	// .env beats YAML, the real environment beats .env.
	assert.Equal(t, "dotenv-id", cfg.API.ClientID)
	assert.Equal(t, "yaml-secret", cfg.API.ClientSecret)
	assert.Equal(t, 300, cfg.Sync.BatchSize)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, "01:30", cfg.Sync.ProductAnalytics.DailySyncTime)
	assert.Equal(t, "02:00", cfg.Sync.ProductAnalytics.HistoryUpdateTime)
	assert.Equal(t, 7, cfg.Database.PoolSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingYAMLIsTolerated(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Database.PoolSize)
}

func TestValidateMissingCredentials(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConfig))

	var ce *apperr.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Problems[0], "both empty")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.API.ClientID = "id"
	cfg.Server.Environment = "staging"
	cfg.Sync.BatchSize = 0
	cfg.Sync.FbaInventory.SyncTime = "25:99"

	var ce *apperr.ConfigError
	require.True(t, errors.As(cfg.Validate(), &ce))
	assert.Len(t, ce.Problems, 4)
}

func TestEnvSecondsAcceptsBothForms(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_DELAY", "0.5")
	t.Setenv("SYNC_TIMEOUT", "90m")
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.API.PageDelay)
	assert.Equal(t, 90*time.Minute, cfg.Sync.JobTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncSettings().RateLimitDelay)
}

func TestYAMLDurationsAcceptBareSeconds(t *testing.T) {
	clearEnv(t)
	yamlPath := writeFile(t, t.TempDir(), "config.yaml", `
database:
  pool_timeout: 15
api:
  timeout: 30
  retry_delay: 1.5
  page_delay: 400ms
  retry_count: 4
scheduler:
  misfire_grace_time: 300
`)
	cfg, err := Load(yamlPath, "")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Database.PoolTimeout)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.API.RetryDelay)
	assert.Equal(t, 400*time.Millisecond, cfg.API.PageDelay)
	assert.Equal(t, 300*time.Second, cfg.Scheduler.MisfireGraceTime)
	assert.Equal(t, 4, cfg.API.RetryCount, "plain integers are left alone")
}

func TestYAMLEmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, t.TempDir(), "config.yaml", ""), "")
	require.NoError(t, err)
	assert.Equal(t, Default().API.Timeout, cfg.API.Timeout)
}

func TestValidateMaxInstances(t *testing.T) {
	cfg := Default()
	cfg.API.ClientID, cfg.API.ClientSecret = "id", "secret"
	require.NoError(t, cfg.Validate())

	cfg.Scheduler.MaxInstances = 3
	var ce *apperr.ConfigError
	require.True(t, errors.As(cfg.Validate(), &ce))
	require.Len(t, ce.Problems, 1)
	assert.Contains(t, ce.Problems[0], "scheduler.max_instances")
}

func TestSyncSettingsSnapshot(t *testing.T) {
	cfg := Default()
	cfg.Sync.EnableValidation = false
	cfg.Sync.BatchSize = 75
	cfg.API.RetryCount = 5

	s := cfg.SyncSettings()
	assert.False(t, s.Validate)
	assert.Equal(t, 75, s.BatchSize)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, cfg.Sync.JobTimeout, s.Timeout)
}

func TestSanitizedHidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.API.ClientID = "client-1234"
	cfg.API.ClientSecret = "super-secret-value"
	cfg.Database.URL = "postgres://app:hunter2@db:5432/sellfox"

	view := cfg.Sanitized()
	for _, v := range view {
		s, ok := v.(string)
		if !ok {
			continue
		}
		assert.NotContains(t, s, "super-secret-value")
		assert.NotContains(t, s, "hunter2")
	}
	assert.Equal(t, "postgres://app@db:5432/sellfox", view["database"])
}

func TestDailySpec(t *testing.T) {
	spec, err := DailySpec("06:30")
	require.NoError(t, err)
	assert.Equal(t, "30 6 * * *", spec)

	_, err = DailySpec("6pm")
	assert.Error(t, err)
}

func TestCredentialsTrimsBaseURL(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "https://openapi.example.com/"
	assert.Equal(t, "https://openapi.example.com", cfg.Credentials().BaseURL)
}
