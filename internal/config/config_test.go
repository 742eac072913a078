package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 20, cfg.Provider.RequestsPerMinute)
	assert.Equal(t, 0, cfg.Provider.TimeoutSecs)
	assert.Equal(t, 8000, cfg.Enrich.InitialDelayMs)
	assert.Equal(t, 120000, cfg.Enrich.MaxDelayMs)
	assert.InDelta(t, 0.75, cfg.Enrich.RelaxFactor, 0.001)
	assert.Equal(t, 3, cfg.Enrich.FailureThreshold)
	assert.Equal(t, 2000, cfg.Enrich.JitterMinMs)
	assert.Equal(t, 6000, cfg.Enrich.JitterMaxMs)
	assert.Equal(t, 1500, cfg.Enrich.ProfileDelayMinMs)
	assert.Equal(t, 4000, cfg.Enrich.ProfileDelayMaxMs)
	assert.Equal(t, 50, cfg.Enrich.BatchSize)
	assert.Equal(t, 10, cfg.Enrich.DealerVehicleThreshold)
	assert.Equal(t, "/tmp/lead-resolver.lock", cfg.Enrich.LockPath)
	assert.Equal(t, 1000, cfg.Dedupe.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
provider:
  base_url: https://provider.example
  requests_per_minute: 6
enrich:
  failure_threshold: 5
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, "https://provider.example", cfg.Provider.BaseURL)
	assert.Equal(t, 6, cfg.Provider.RequestsPerMinute)
	assert.Equal(t, 5, cfg.Enrich.FailureThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 8000, cfg.Enrich.InitialDelayMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LEADS_STORE_DRIVER", "postgres")
	t.Setenv("LEADS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEADS_ENRICH_MAX_DELAY_MS", "60000")
	t.Setenv("LEADS_PROVIDER_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60000, cfg.Enrich.MaxDelayMs)
	assert.Equal(t, "secret", cfg.Provider.APIKey)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leads.db"
	cfg.Provider.BaseURL = "https://provider.example"
	cfg.Provider.RequestsPerMinute = 20
	cfg.Enrich = EnrichConfig{
		InitialDelayMs:    8000,
		MaxDelayMs:        120000,
		RelaxFactor:       0.75,
		FailureThreshold:  3,
		JitterMinMs:       2000,
		JitterMaxMs:       6000,
		ProfileDelayMinMs: 1500,
		ProfileDelayMaxMs: 4000,
		BatchSize:         50,
	}
	cfg.Dedupe.PageSize = 1000
	return cfg
}

func TestValidate_AllModesPass(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"store", "enrich", "dedupe"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateEnrich_MissingProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Provider.BaseURL = ""
	cfg.Provider.RequestsPerMinute = 0

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.base_url is required")
	assert.Contains(t, err.Error(), "provider.requests_per_minute must be > 0")
}

func TestValidateEnrich_Pacing(t *testing.T) {
	cfg := validDefaults()
	cfg.Enrich.RelaxFactor = 1.5
	cfg.Enrich.MaxDelayMs = 100
	cfg.Enrich.JitterMaxMs = 1

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relax_factor")
	assert.Contains(t, err.Error(), "max_delay_ms")
	assert.Contains(t, err.Error(), "jitter_max_ms")
}

func TestValidateDedupe_PageSize(t *testing.T) {
	cfg := validDefaults()
	cfg.Dedupe.PageSize = 0

	err := cfg.Validate("dedupe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedupe.page_size")
}

func TestValidate_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
