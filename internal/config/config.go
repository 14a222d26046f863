// Package config handles engine configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OAuthConfig holds the OAuth client settings used by the interactive
// authorization flow. Endpoint overrides exist for testing.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
}

// HTTPConfig holds remote-call timeout settings.
type HTTPConfig struct {
	Timeout          string `yaml:"timeout"`           // remote API calls (e.g. "30s")
	AuthorizeTimeout string `yaml:"authorize_timeout"` // user-paced authorization (e.g. "5m")
}

// Config represents the engine configuration.
type Config struct {
	AccountsPath string      `yaml:"accounts_path"`
	CachePath    string      `yaml:"cache_path"`
	APIBaseURL   string      `yaml:"api_base_url"` // override for testing
	OAuth        OAuthConfig `yaml:"oauth"`
	HTTP         HTTPConfig  `yaml:"http"`
	Verbose      bool        `yaml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AccountsPath: filepath.Join(GetDataDir(), "accounts.conf"),
		CachePath:    filepath.Join(GetCacheDir(), "snapshots.db"),
		HTTP: HTTPConfig{
			Timeout:          "30s",
			AuthorizeTimeout: "5m",
		},
	}
}

// Load loads configuration from the specified path, or the default XDG path
// if empty. If the config file doesn't exist, it creates one with defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	// Apply defaults for unset fields
	defaults := DefaultConfig()
	if cfg.AccountsPath == "" {
		cfg.AccountsPath = defaults.AccountsPath
	}
	if cfg.CachePath == "" {
		cfg.CachePath = defaults.CachePath
	}
	if cfg.HTTP.Timeout == "" {
		cfg.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if cfg.HTTP.AuthorizeTimeout == "" {
		cfg.HTTP.AuthorizeTimeout = defaults.HTTP.AuthorizeTimeout
	}

	cfg.AccountsPath = ExpandPath(cfg.AccountsPath)
	cfg.CachePath = ExpandPath(cfg.CachePath)

	return cfg, nil
}

// save writes the configuration to the specified path.
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTP.Timeout != "" {
		if _, err := time.ParseDuration(c.HTTP.Timeout); err != nil {
			return fmt.Errorf("invalid duration for http.timeout: %q", c.HTTP.Timeout)
		}
	}
	if c.HTTP.AuthorizeTimeout != "" {
		if _, err := time.ParseDuration(c.HTTP.AuthorizeTimeout); err != nil {
			return fmt.Errorf("invalid duration for http.authorize_timeout: %q", c.HTTP.AuthorizeTimeout)
		}
	}
	return nil
}

// GetHTTPTimeout returns the remote-call timeout as a time.Duration.
// Returns 30 seconds if not configured or if parsing fails.
func (c *Config) GetHTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetAuthorizeTimeout returns the authorization timeout as a time.Duration.
// Returns 5 minutes if not configured or if parsing fails.
func (c *Config) GetAuthorizeTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.AuthorizeTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// getXDGDir returns a directory path following XDG spec.
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "todosync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "todosync")
	}
	return filepath.Join(home, fallbackPath, "todosync")
}

// GetConfigDir returns the configuration directory following XDG spec.
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec.
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec.
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
