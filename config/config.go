// Package config loads agentflow's server configuration from a YAML
// file and the environment: a typed YAML shape, environment overrides
// for anything secret, and a single Load entry point.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig is one LLM vendor's credentials and default model.
type ProviderConfig struct {
	APIKeyEnv    string `yaml:"api_key_env"`
	DefaultModel string `yaml:"default_model,omitempty"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver     string `yaml:"driver"` // "memory", "sqlite" or "mysql"
	DSN        string `yaml:"dsn,omitempty"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// BudgetConfig holds the default caps applied to an execution that
// doesn't set its own.
type BudgetConfig struct {
	MaxTokens int     `yaml:"max_tokens,omitempty"`
	MaxCost   float64 `yaml:"max_cost,omitempty"`
}

// RedisConfig configures the optional pub/sub event stream. A blank Addr
// means events stay local (no Redis fan-out).
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password_env,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Config is the top-level shape of agentflow.yaml.
type Config struct {
	HTTPAddr           string                    `yaml:"http_addr"`
	DefaultNodeTimeout time.Duration             `yaml:"default_node_timeout,omitempty"`
	RetryBaseDelay     time.Duration             `yaml:"retry_base_delay,omitempty"`
	Budget             BudgetConfig              `yaml:"budget"`
	Store              StoreConfig               `yaml:"store"`
	Redis              RedisConfig               `yaml:"redis"`
	Providers          map[string]ProviderConfig `yaml:"providers"`
}

// rawConfig lets agentflow.yaml write durations as "30s" strings, since
// time.Duration has no native YAML unmarshaler.
type rawConfig struct {
	HTTPAddr           string                    `yaml:"http_addr"`
	DefaultNodeTimeout string                    `yaml:"default_node_timeout,omitempty"`
	RetryBaseDelay     string                    `yaml:"retry_base_delay,omitempty"`
	Budget             BudgetConfig              `yaml:"budget"`
	Store              StoreConfig               `yaml:"store"`
	Redis              RedisConfig               `yaml:"redis"`
	Providers          map[string]ProviderConfig `yaml:"providers"`
}

// Load reads configDir/agentflow.yaml and configDir/.env (if present),
// then resolves every provider's API key from its configured environment
// variable. A missing agentflow.yaml is not an error: Load returns
// sensible defaults so agentflow can run with just environment variables
// set.
func Load(configDir string) (*Config, error) {
	envPath := configDir + "/.env"
	if err := godotenv.Load(envPath); err != nil {
		// No .env file is normal in production; only report real I/O errors.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	cfg := &Config{
		HTTPAddr:           ":8080",
		DefaultNodeTimeout: 30 * time.Second,
		RetryBaseDelay:     time.Second,
		Store:              StoreConfig{Driver: "memory"},
		Providers:          map[string]ProviderConfig{},
	}

	path := configDir + "/agentflow.yaml"
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if raw.HTTPAddr != "" {
		cfg.HTTPAddr = raw.HTTPAddr
	}
	if raw.DefaultNodeTimeout != "" {
		d, err := time.ParseDuration(raw.DefaultNodeTimeout)
		if err != nil {
			return nil, fmt.Errorf("default_node_timeout: %w", err)
		}
		cfg.DefaultNodeTimeout = d
	}
	if raw.RetryBaseDelay != "" {
		d, err := time.ParseDuration(raw.RetryBaseDelay)
		if err != nil {
			return nil, fmt.Errorf("retry_base_delay: %w", err)
		}
		cfg.RetryBaseDelay = d
	}
	cfg.Budget = raw.Budget
	if raw.Store.Driver != "" {
		cfg.Store = raw.Store
	}
	cfg.Redis = raw.Redis
	if len(raw.Providers) > 0 {
		cfg.Providers = raw.Providers
	}

	return cfg, nil
}

// ProviderAPIKey resolves the API key environment variable configured
// for a named provider. It returns an empty string (not an error) when
// the provider isn't configured or its env var isn't set, letting the
// caller decide whether that adapter is optional.
func (c *Config) ProviderAPIKey(name string) string {
	pc, ok := c.Providers[name]
	if !ok || pc.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(pc.APIKeyEnv)
}

// RedisPassword resolves the Redis password from its configured
// environment variable, if any.
func (c *Config) RedisPassword() string {
	if c.Redis.Password == "" {
		return ""
	}
	return os.Getenv(c.Redis.Password)
}
