// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"todosync/internal/views"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

const (
	defaultBaseURL    = "https://jsonplaceholder.typicode.com/todos"
	defaultPageSize   = 10
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultServerAddr = ":8080"
	defaultServerDB   = ":memory:"
)

// APIConfig holds remote task store settings
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	PageSize   int    `yaml:"page_size"`
	Timeout    string `yaml:"timeout"`     // e.g. "30s"
	MaxRetries *int   `yaml:"max_retries"` // nil means default, 0 disables retries
}

// UIConfig holds user interface settings
type UIConfig struct {
	DefaultFilter string `yaml:"default_filter"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"`
}

// ServerConfig holds settings for the serve command
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

// Config represents the application configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	retries := defaultMaxRetries
	return &Config{
		API: APIConfig{
			BaseURL:    defaultBaseURL,
			PageSize:   defaultPageSize,
			Timeout:    defaultTimeout.String(),
			MaxRetries: &retries,
		},
		UI: UIConfig{DefaultFilter: string(views.FilterAll)},
		Server: ServerConfig{
			Addr:   defaultServerAddr,
			DBPath: defaultServerDB,
		},
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it is created from the sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return DefaultConfig(), nil
	}

	return LoadFromPath(configPath)
}

// LoadFromPath parses an existing config file and fills unset fields with defaults.
func LoadFromPath(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults for unset fields
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = d.API.PageSize
	}
	if c.API.Timeout == "" {
		c.API.Timeout = d.API.Timeout
	}
	if c.API.MaxRetries == nil {
		c.API.MaxRetries = d.API.MaxRetries
	}
	if c.UI.DefaultFilter == "" {
		c.UI.DefaultFilter = d.UI.DefaultFilter
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = d.Server.DBPath
	}
	if c.Server.DBPath != defaultServerDB {
		c.Server.DBPath = ExpandPath(c.Server.DBPath)
	}
	c.Logging.File = ExpandPath(c.Logging.File)
}

func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid api.base_url: %q (must be an http or https URL)", c.API.BaseURL)
	}
	if c.API.PageSize < 0 {
		return fmt.Errorf("api.page_size must not be negative, got %d", c.API.PageSize)
	}
	if d, err := time.ParseDuration(c.API.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid duration for api.timeout: %q", c.API.Timeout)
	}
	if c.API.MaxRetries != nil && *c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative, got %d", *c.API.MaxRetries)
	}
	if _, err := views.ParseFilter(c.UI.DefaultFilter); err != nil {
		return fmt.Errorf("invalid ui.default_filter: %w", err)
	}
	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration.
// Zero values leave the file setting in place.
func (c *Config) ApplyFlags(apiURL string, limit int, verbose bool) {
	if apiURL != "" {
		c.API.BaseURL = apiURL
	}
	if limit > 0 {
		c.API.PageSize = limit
	}
	if verbose {
		c.Logging.Verbose = true
	}
}

// GetTimeout returns api.timeout as a duration, falling back to the default
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

// GetMaxRetries returns api.max_retries. Returns 3 if not configured.
func (c *Config) GetMaxRetries() int {
	if c.API.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *c.API.MaxRetries
}

// GetDefaultFilter returns the startup filter, or all if the setting is invalid
func (c *Config) GetDefaultFilter() views.Filter {
	f, err := views.ParseFilter(c.UI.DefaultFilter)
	if err != nil {
		return views.FilterAll
	}
	return f
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
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

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// DefaultPath returns the config file location used when --config is not given
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// ExpandPath expands ~ and environment variables in a path
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
