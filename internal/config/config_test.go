package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Bench.Concurrency)
	assert.Equal(t, "https://graph.facebook.com/v21.0", cfg.AdLibrary.BaseURL)
	assert.InDelta(t, 5.0, cfg.AdLibrary.RequestsPerSec, 0.001)
	assert.Equal(t, 500, cfg.AdLibrary.MaxAdsPerBrand)
	assert.Equal(t, 25, cfg.AdLibrary.SearchPageLimit)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 10, cfg.Pipeline.MaxCompetitors)
	assert.Equal(t, "verticals.yaml", cfg.Registry.Path)
	assert.Equal(t, 50, cfg.Sampling.PerBrandCap)
	assert.Equal(t, 25, cfg.Sampling.LargeBrandCap)
	assert.Equal(t, 200, cfg.Sampling.MaxTotalBudget)
	assert.Equal(t, 3, cfg.Sampling.MinPerBrand)
	assert.NotEmpty(t, cfg.Pricing.Claude, "pricing falls back to default rates")
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: local.db
log:
  level: debug
  format: console
sampling:
  max_total_budget: 80
  per_brand_cap: 15
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "local.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 80, cfg.Sampling.MaxTotalBudget)
	assert.Equal(t, 15, cfg.Sampling.PerBrandCap)
	// Unset keys keep their defaults.
	assert.Equal(t, 25, cfg.Sampling.LargeBrandCap)
}

func TestLoadEnvOverride(t *testing.T) {
	chTempDir(t)
	t.Setenv("ADINTEL_STORE_DRIVER", "sqlite")
	t.Setenv("ADINTEL_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "shout", Format: "json"})
	require.Error(t, err)
}
