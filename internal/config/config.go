package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livetemplate/kayero/internal/security"
)

// FileName is the configuration file looked up next to a notebook.
const FileName = "kayero.yaml"

// Config represents the kayero configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Editor   EditorConfig   `yaml:"editor"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
	Features FeaturesConfig `yaml:"features"`
	API      *APIConfig     `yaml:"api,omitempty"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EditorConfig holds settings the document reducer consults
type EditorConfig struct {
	// Homepage is the base of share links: <homepage>?id=<published id>
	Homepage string `yaml:"homepage"`
	// BaseURL is recorded as the original location on the first edit.
	// Empty means the server's own address.
	BaseURL string `yaml:"base_url,omitempty"`
}

// StoreConfig selects where shared notebooks are published
type StoreConfig struct {
	Driver   string `yaml:"driver"`              // "memory", "sqlite" or "postgres"
	DSN      string `yaml:"dsn,omitempty"`       // Connection string (env vars expanded)
	CacheTTL string `yaml:"cache_ttl,omitempty"` // Read cache TTL (e.g., "5m"). Empty disables caching
}

// GetDSN returns the DSN with environment variable expansion
func (c StoreConfig) GetDSN() string {
	return os.ExpandEnv(c.DSN)
}

// GetCacheTTL returns the parsed cache TTL (0 if caching is disabled)
func (c StoreConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`                 // debug, info, warn, error
	File       string `yaml:"file,omitempty"`        // Rotated JSON log file; empty logs to the console only
	Production bool   `yaml:"production"`            // JSON console output instead of colored text
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"` // Rotation size (default: 10)
	MaxBackups int    `yaml:"max_backups,omitempty"` // Rotated files kept (default: 5)
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// GetMaxSizeMB returns the rotation size (default: 10)
func (c LogConfig) GetMaxSizeMB() int {
	if c.MaxSizeMB <= 0 {
		return 10
	}
	return c.MaxSizeMB
}

// GetMaxBackups returns the number of rotated files kept (default: 5)
func (c LogConfig) GetMaxBackups() int {
	if c.MaxBackups <= 0 {
		return 5
	}
	return c.MaxBackups
}

// GetMaxAgeDays returns how long rotated files are kept (default: 30)
func (c LogConfig) GetMaxAgeDays() int {
	if c.MaxAgeDays <= 0 {
		return 30
	}
	return c.MaxAgeDays
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload"`
}

// APIConfig holds HTTP API configuration
type APIConfig struct {
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // Rate limit in requests per second (default: 10)
	Burst             int     `yaml:"burst,omitempty"`               // Burst size (default: 20)
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Editor: EditorConfig{
			Homepage: "http://localhost:8080/shared",
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Log: LogConfig{
			Level: "info",
		},
		Features: FeaturesConfig{
			HotReload: true,
		},
	}
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", "memory":
	case "sqlite", "postgres":
		if c.Store.GetDSN() == "" {
			return fmt.Errorf("store: %s driver requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	if c.Editor.Homepage != "" {
		if err := security.ValidateHomepage(c.Editor.Homepage); err != nil {
			return fmt.Errorf("editor: homepage: %w", err)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	return nil
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFromDir looks for kayero.yaml in the given directory
// If none is found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
