package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/frugal/pkg/bucket"
	"github.com/pario-ai/frugal/pkg/models"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "FRUGAL_"

// Config holds all frugal configuration.
type Config struct {
	Cache     CacheConfig        `yaml:"cache"`
	Buckets   bucket.Config      `yaml:"buckets"`
	Router    RouterConfig       `yaml:"router"`
	Pricing   PricingConfig      `yaml:"pricing"`
	Budget    models.TokenBudget `yaml:"budget"`
	Providers []ProviderConfig   `yaml:"providers"`
	Ledger    LedgerConfig       `yaml:"ledger"`
	Log       LogConfig          `yaml:"log"`

	path string
}

// CacheConfig controls the response cache.
// Backend is "file" (default) or "sqlite".
type CacheConfig struct {
	Enabled                  bool   `yaml:"enabled"`
	Backend                  string `yaml:"backend"`
	Dir                      string `yaml:"dir"`
	DBPath                   string `yaml:"db_path"`
	MaxResponsesPerSignature int    `yaml:"max_responses_per_signature"`
}

// RouterConfig maps task type names to models.
type RouterConfig struct {
	DefaultModel string            `yaml:"default_model"`
	Routes       map[string]string `yaml:"routes"`
}

// PricingConfig is the per-model price table.
// Default applies to models not listed.
type PricingConfig struct {
	Default models.ModelPricing   `yaml:"default"`
	Models  []models.ModelPricing `yaml:"models"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "anthropic" (default) or "openai". Models lists the model
// prefixes the provider serves.
type ProviderConfig struct {
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	URL    string   `yaml:"url"`
	APIKey string   `yaml:"api_key"`
	Models []string `yaml:"models"`
}

// LedgerConfig controls the persisted interaction ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	JSON       bool   `yaml:"json"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Enabled:                  true,
			Backend:                  "file",
			Dir:                      ".frugal/cache",
			DBPath:                   ".frugal/cache.db",
			MaxResponsesPerSignature: 5,
		},
		Buckets: bucket.DefaultConfig(),
		Router: RouterConfig{
			DefaultModel: "claude-sonnet-4-20250514",
		},
		Pricing: PricingConfig{
			Default: models.ModelPricing{Model: "default", Input: 3.0, Output: 15.0},
			Models: []models.ModelPricing{
				{Model: "claude-haiku-3-20240307", Input: 0.25, Output: 1.25},
				{Model: "claude-sonnet-4-20250514", Input: 3.0, Output: 15.0},
				{Model: "claude-opus-4-20250514", Input: 15.0, Output: 75.0},
			},
		},
		Budget: models.TokenBudget{
			CostLimitPerSession:     10.0,
			CostLimitPerInteraction: 1.0,
			MaxInputTokens:          100_000,
			MaxOutputTokens:         4096,
			MaxTotalTokens:          500_000,
			WarningThreshold:        0.8,
			ReserveTokens:           10_000,
		},
		Ledger: LedgerConfig{
			DBPath: ".frugal/ledger.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds a Config from defaults, an optional .env file, an optional
// YAML file at path and FRUGAL_ environment overrides. Environment
// variables in the YAML file are expanded. An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	cfg.path = path
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Reload re-reads the config from its original source and replaces c.
func (c *Config) Reload() error {
	fresh, err := Load(c.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	*c = *fresh
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPrefix + "CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		c.Cache.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "DEFAULT_MODEL"); v != "" {
		c.Router.DefaultModel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	for name, dst := range map[string]*float64{
		"COST_LIMIT_PER_SESSION":     &c.Budget.CostLimitPerSession,
		"COST_LIMIT_PER_INTERACTION": &c.Budget.CostLimitPerInteraction,
	} {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		}
		*dst = f
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		if p.APIKey == "" {
			p.APIKey = os.Getenv(keyEnv(p.Type))
		}
	}
	if len(c.Providers) == 0 {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			c.Providers = append(c.Providers, ProviderConfig{
				Name: "anthropic", Type: "anthropic", APIKey: key, Models: []string{"claude-"},
			})
		}
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Providers = append(c.Providers, ProviderConfig{
				Name: "openai", Type: "openai", APIKey: key, Models: []string{"gpt-", "o1", "o3", "o4"},
			})
		}
	}
	return nil
}

func keyEnv(providerType string) string {
	if providerType == "openai" {
		return "OPENAI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}

// Validate checks the config for values no component can work with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("cache backend %q: must be file or sqlite", c.Cache.Backend)
	}
	if c.Cache.MaxResponsesPerSignature <= 0 {
		return fmt.Errorf("max_responses_per_signature must be positive, got %d", c.Cache.MaxResponsesPerSignature)
	}
	if c.Budget.CostLimitPerSession < 0 || c.Budget.CostLimitPerInteraction < 0 {
		return errors.New("budget cost limits must not be negative")
	}
	if c.Budget.MaxInputTokens < 0 || c.Budget.MaxOutputTokens < 0 || c.Budget.MaxTotalTokens < 0 || c.Budget.ReserveTokens < 0 {
		return errors.New("budget token limits must not be negative")
	}
	if t := c.Budget.WarningThreshold; t < 0 || t > 1 {
		return fmt.Errorf("budget warning_threshold %v: must be within [0, 1]", t)
	}
	for _, p := range c.Providers {
		switch p.Type {
		case "", "anthropic", "openai":
		default:
			return fmt.Errorf("provider %s: unknown type %q", p.Name, p.Type)
		}
	}
	if err := c.Buckets.Validate(); err != nil {
		return fmt.Errorf("buckets: %w", err)
	}
	return nil
}
