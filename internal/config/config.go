// ABOUTME: Configuration loading and parsing for adui
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load and Default
const (
	DefaultHTTPAddr = "127.0.0.1:7420"
	DefaultTimeout  = 30 * time.Second
	DefaultDBFile   = "adui.db"
)

// Config represents the complete adui configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	DataDir  string         `yaml:"data_dir" toml:"data_dir"`
	Settings SettingsConfig `yaml:"settings" toml:"settings"`
	Network  NetworkConfig  `yaml:"network" toml:"network"`
	Tools    ToolsConfig    `yaml:"tools" toml:"tools"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// SettingsConfig controls how setting values are stored.
// A nil EncryptedKeys means the default list; an explicit empty list disables sealing.
type SettingsConfig struct {
	EncryptedKeys []string `yaml:"encrypted_keys" toml:"encrypted_keys"`
}

// NetworkConfig holds outbound HTTP configuration for tools
type NetworkConfig struct {
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`

	RateLimit float64     `yaml:"rate_limit" toml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int         `yaml:"burst" toml:"burst"`
	Proxy     ProxyConfig `yaml:"proxy" toml:"proxy"`
}

// ProxyConfig selects the outbound proxy: disable, system or manual
type ProxyConfig struct {
	Mode string `yaml:"mode" toml:"mode"`
	URL  string `yaml:"url" toml:"url"` // manual mode only
}

// ToolsConfig controls tool activation
type ToolsConfig struct {
	// ConcurrentActivation > 1 runs that many tool hooks at once
	ConcurrentActivation int      `yaml:"concurrent_activation" toml:"concurrent_activation"`
	Disabled             []string `yaml:"disabled" toml:"disabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Path returns the path to the config file.
// Priority: ADUI_CONFIG env var > XDG_CONFIG_HOME/adui/config.yaml > ~/.config/adui/config.yaml
func Path() string {
	if envPath := os.Getenv("ADUI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "adui", "config.yaml")
}

// DataPath returns the default data directory.
// Priority: XDG_DATA_HOME/adui > ~/.local/share/adui
func DataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "adui")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DataPath()
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, DefaultDBFile)
	}
	if cfg.Settings.EncryptedKeys == nil {
		cfg.Settings.EncryptedKeys = []string{"api_keys"}
	}
	if cfg.Network.Timeout == 0 {
		cfg.Network.Timeout = DefaultTimeout
	}
	if cfg.Network.Proxy.Mode == "" {
		cfg.Network.Proxy.Mode = "system"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Network.Proxy.Mode {
	case "disable", "system":
	case "manual":
		if c.Network.Proxy.URL == "" {
			return fmt.Errorf("network.proxy.url is required when network.proxy.mode is manual")
		}
	default:
		return fmt.Errorf("network.proxy.mode must be disable, system or manual, got %q", c.Network.Proxy.Mode)
	}

	if c.Network.Timeout < 0 {
		return fmt.Errorf("network.timeout must not be negative")
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative")
	}
	if c.Network.Burst < 0 {
		return fmt.Errorf("network.burst must not be negative")
	}
	if c.Tools.ConcurrentActivation < 0 {
		return fmt.Errorf("tools.concurrent_activation must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// ToolDisabled reports whether id is listed in tools.disabled.
func (c *Config) ToolDisabled(id string) bool {
	for _, d := range c.Tools.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Network.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Network.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing network.timeout %q: %w", cfg.Network.TimeoutRaw, err)
		}
		cfg.Network.Timeout = d
	}
	return nil
}
