package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "price-research.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 0.5, cfg.Pricing.LowThreshold, 0.001)
	assert.InDelta(t, 2.0, cfg.Pricing.HighThreshold, 0.001)
	assert.Equal(t, 12, cfg.Pricing.StalenessMonths)
	assert.Equal(t, 2, cfg.Pricing.DiversityMinimum)
	assert.Equal(t, 3, cfg.Pricing.MinValidPrices)
	assert.Equal(t, model.MethodMedian, cfg.Pricing.Method())
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Anthropic.Timeout())
	assert.True(t, cfg.Advisory.Enabled)
	assert.Equal(t, "0 3 * * *", cfg.Sweep.Schedule)
	assert.Equal(t, 1000, cfg.Catalog.BatchSize)
	assert.Equal(t, "latin1", cfg.Catalog.Encoding)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/precos
log:
  level: debug
  format: console
server:
  port: 9090
pricing:
  high_threshold: 1.5
  staleness_months: 6
  default_method: average
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/precos", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, model.MethodAverage, cfg.Pricing.Method())

	th := cfg.Pricing.Thresholds()
	assert.True(t, th.HighThreshold.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, th.LowThreshold.Equal(decimal.RequireFromString("0.5")), "defaults still apply for unset values")
	assert.Equal(t, 6, th.StalenessMonths)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PRICE_RESEARCH_STORE_DRIVER", "sqlite")
	t.Setenv("PRICE_RESEARCH_LOG_LEVEL", "warn")
	t.Setenv("PRICE_RESEARCH_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "test.db"
	cfg.Server.Port = 8080
	cfg.Pricing = PricingConfig{LowThreshold: 0.5, HighThreshold: 2, StalenessMonths: 12, DiversityMinimum: 2, MinValidPrices: 3, DefaultMethod: "median"}
	cfg.Catalog.BatchSize = 1000
	cfg.Catalog.Concurrency = 2
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "serve ok", mode: "serve"},
		{name: "migrate ok", mode: "migrate"},
		{name: "sweep ok", mode: "sweep"},
		{name: "report ok", mode: "report"},
		{name: "catalog ok", mode: "catalog"},
		{name: "evaluate without store", mode: "evaluate", mutate: func(c *Config) { c.Store = StoreConfig{} }},
		{name: "serve bad port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "missing url", mode: "migrate", mutate: func(c *Config) { c.Store.DatabaseURL = "" }, wantErr: "store.database_url is required"},
		{name: "bad driver", mode: "sweep", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "must be postgres or sqlite"},
		{name: "advise needs key", mode: "advise", wantErr: "anthropic.key is required"},
		{name: "advise with key", mode: "advise", mutate: func(c *Config) { c.Anthropic.Key = "k" }},
		{name: "catalog batch", mode: "catalog", mutate: func(c *Config) { c.Catalog.BatchSize = 0 }, wantErr: "catalog.batch_size"},
		{name: "catalog concurrency", mode: "catalog", mutate: func(c *Config) { c.Catalog.Concurrency = 17 }, wantErr: "catalog.concurrency"},
		{name: "bad thresholds", mode: "evaluate", mutate: func(c *Config) { c.Pricing.HighThreshold = 0.8 }, wantErr: "high_threshold must be >= 1"},
		{name: "bad method", mode: "evaluate", mutate: func(c *Config) { c.Pricing.DefaultMethod = "mode" }, wantErr: "pricing.default_method"},
		{name: "unknown mode", mode: "enrich", wantErr: "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
