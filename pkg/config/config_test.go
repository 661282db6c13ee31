package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frugal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearProviderEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.Cache.MaxResponsesPerSignature)
	assert.Equal(t, 10.0, cfg.Budget.CostLimitPerSession)
	assert.Equal(t, 1.0, cfg.Budget.CostLimitPerInteraction)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Router.DefaultModel)
	assert.Contains(t, cfg.Buckets, "approval")
	assert.Len(t, cfg.Pricing.Models, 3)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("TEST_API_KEY", "sk-test-123")

	path := writeConfig(t, `
cache:
  backend: sqlite
  db_path: /tmp/frugal-test.db
  max_responses_per_signature: 3
buckets:
  approval:
    - {min: 0, max: 50, label: low}
    - {min: 50, max: 100, label: high}
router:
  default_model: claude-opus-4-20250514
  routes:
    agent_response: claude-haiku-3-20240307
budget:
  cost_limit_per_session: 2.5
  cost_limit_per_interaction: 0.25
providers:
  - name: primary
    type: anthropic
    api_key: ${TEST_API_KEY}
    models: [claude-]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.Cache.MaxResponsesPerSignature)
	assert.Len(t, cfg.Buckets["approval"], 2)
	assert.Contains(t, cfg.Buckets, "economy", "unlisted default tables are kept")
	assert.Equal(t, "claude-opus-4-20250514", cfg.Router.DefaultModel)
	assert.Equal(t, "claude-haiku-3-20240307", cfg.Router.Routes["agent_response"])
	assert.Equal(t, 2.5, cfg.Budget.CostLimitPerSession)
	assert.Equal(t, 0.25, cfg.Budget.CostLimitPerInteraction)
	assert.Equal(t, 4096, cfg.Budget.MaxOutputTokens, "unset fields keep defaults")
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-test-123", cfg.Providers[0].APIKey)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/frugal.yaml")
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	clearProviderEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Cache, cfg.Cache)
	assert.Empty(t, cfg.Providers)
}

func TestEnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("FRUGAL_CACHE_DIR", "/var/cache/frugal")
	t.Setenv("FRUGAL_DEFAULT_MODEL", "claude-haiku-3-20240307")
	t.Setenv("FRUGAL_COST_LIMIT_PER_INTERACTION", "0.05")
	t.Setenv("FRUGAL_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/frugal", cfg.Cache.Dir)
	assert.Equal(t, "claude-haiku-3-20240307", cfg.Router.DefaultModel)
	assert.Equal(t, 0.05, cfg.Budget.CostLimitPerInteraction)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("FRUGAL_COST_LIMIT_PER_SESSION", "lots")
	_, err := Load("")
	assert.ErrorContains(t, err, "FRUGAL_COST_LIMIT_PER_SESSION")
}

func TestProvidersFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "anthropic", cfg.Providers[0].Type)
	assert.Equal(t, "sk-ant", cfg.Providers[0].APIKey)

	path := writeConfig(t, `
providers:
  - name: oai
    type: openai
`)
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-oai", cfg.Providers[0].APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"max responses", func(c *Config) { c.Cache.MaxResponsesPerSignature = 0 }},
		{"negative cost", func(c *Config) { c.Budget.CostLimitPerSession = -1 }},
		{"negative tokens", func(c *Config) { c.Budget.MaxInputTokens = -1 }},
		{"threshold", func(c *Config) { c.Budget.WarningThreshold = 1.5 }},
		{"provider type", func(c *Config) { c.Providers = []ProviderConfig{{Name: "x", Type: "bedrock"}} }},
		{"inverted bucket", func(c *Config) { c.Buckets["approval"][0].Min = 200 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestReload(t *testing.T) {
	clearProviderEnv(t)
	path := writeConfig(t, "budget:\n  cost_limit_per_session: 1.0\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Budget.CostLimitPerSession)

	require.NoError(t, os.WriteFile(path, []byte("budget:\n  cost_limit_per_session: 4.0\n"), 0o644))
	require.NoError(t, cfg.Reload())
	assert.Equal(t, 4.0, cfg.Budget.CostLimitPerSession)
	assert.Equal(t, path, cfg.Path())
}
