package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/scheduler"
)

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
models:
  - provider: openai
    model_id: gpt-4o-mini
    tokens_per_minute: 200000
    requests_per_minute: 500
    quality_score: 0.8
    api_key: ${TEST_OPENAI_KEY}
discovery:
  max_pages: 4
competitor:
  candidate_timeout: 90s
`), 0600))

	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	t.Setenv("COMPSCOUT_SEARCH_API_KEY", "serp-key")
	t.Setenv("COMPSCOUT_API_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "sk-test", cfg.Models[0].APIKey)
	assert.Equal(t, 500, cfg.Models[0].RequestsPerMinute)
	assert.Equal(t, 4, cfg.Discovery.MaxPages)
	assert.Equal(t, 3, cfg.Discovery.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.Competitor.CandidateTimeout)
	assert.Equal(t, 0.6, cfg.Competitor.MatchThreshold)
	assert.True(t, cfg.Competitor.SuggestSources)
	assert.Equal(t, "serp-key", cfg.Search.APIKey)
	assert.Equal(t, "9000", cfg.API.Port)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "sqlite", cfg.Database.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Models = []models.ModelDescriptor{{Provider: "anthropic", ModelID: "claude-haiku", RequestsPerMinute: 50}}
	cfg.Watches = []scheduler.Watch{{
		Name:              "cafe",
		Schedule:          "0 6 * * 1",
		Domain:            "mybiz.com",
		ProductCatalogURL: "https://mybiz.com/menu",
	}}
	cfg.Fetcher.Timeout = 45 * time.Second
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Models, loaded.Models)
	assert.Equal(t, cfg.Watches[0].Request(), loaded.Watches[0].Request())
	assert.Equal(t, 45*time.Second, loaded.Fetcher.Timeout)
	assert.Equal(t, cfg.Search.BaseURL, loaded.Search.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = "loud"
	cfg.Models = []models.ModelDescriptor{
		{Provider: "openai", ModelID: "a"},
		{Provider: "openai", ModelID: "a"},
		{Provider: "skynet", ModelID: ""},
	}
	cfg.Cache.Type = "redis"
	cfg.Database.Provider = "cassandra"
	cfg.Renderer.Type = "magic"
	cfg.Watches = []scheduler.Watch{{Name: "broken", Schedule: "* * *"}}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"log_level", "duplicate model_id", "unsupported provider", "model_id is required",
		"redis_addr", "database provider", "renderer type", "watch broken",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestGetConfigPathHonoursEnv(t *testing.T) {
	t.Setenv("COMPSCOUT_CONFIG_PATH", "/tmp/elsewhere.yaml")
	assert.Equal(t, "/tmp/elsewhere.yaml", GetConfigPath())
}
