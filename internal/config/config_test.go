// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

data_dir: "/tmp/adui-data"

settings:
  encrypted_keys:
    - api_keys
    - tokens

network:
  timeout: "10s"
  rate_limit: 5
  burst: 2
  proxy:
    mode: manual
    url: "http://127.0.0.1:7890"

tools:
  concurrent_activation: 4
  disabled:
    - markdown

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.DataDir != "/tmp/adui-data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/tmp/adui-data")
	}
	if len(cfg.Settings.EncryptedKeys) != 2 || cfg.Settings.EncryptedKeys[1] != "tokens" {
		t.Errorf("Settings.EncryptedKeys = %v, want [api_keys tokens]", cfg.Settings.EncryptedKeys)
	}
	if cfg.Network.Timeout != 10*time.Second {
		t.Errorf("Network.Timeout = %v, want %v", cfg.Network.Timeout, 10*time.Second)
	}
	if cfg.Network.RateLimit != 5 || cfg.Network.Burst != 2 {
		t.Errorf("Network rate = %v/%d, want 5/2", cfg.Network.RateLimit, cfg.Network.Burst)
	}
	if cfg.Network.Proxy.Mode != "manual" || cfg.Network.Proxy.URL != "http://127.0.0.1:7890" {
		t.Errorf("Network.Proxy = %+v", cfg.Network.Proxy)
	}
	if cfg.Tools.ConcurrentActivation != 4 {
		t.Errorf("Tools.ConcurrentActivation = %d, want 4", cfg.Tools.ConcurrentActivation)
	}
	if !cfg.ToolDisabled("markdown") || cfg.ToolDisabled("json") {
		t.Errorf("ToolDisabled mismatch for %v", cfg.Tools.Disabled)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
data_dir = "/var/lib/adui"

[server]
http_addr = "127.0.0.1:9000"

[network]
timeout = "1m"

[network.proxy]
mode = "disable"

[logging]
level = "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Network.Timeout != time.Minute {
		t.Errorf("Network.Timeout = %v, want 1m", cfg.Network.Timeout)
	}
	if cfg.Network.Proxy.Mode != "disable" {
		t.Errorf("Network.Proxy.Mode = %q", cfg.Network.Proxy.Mode)
	}
	want := filepath.Join("/var/lib/adui", DefaultDBFile)
	if cfg.Database.Path != want {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	configPath := writeConfig(t, "config.yaml", "logging:\n  level: info\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.DataDir != filepath.Join("/data", "adui") {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Database.Path != filepath.Join("/data", "adui", DefaultDBFile) {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if len(cfg.Settings.EncryptedKeys) != 1 || cfg.Settings.EncryptedKeys[0] != "api_keys" {
		t.Errorf("Settings.EncryptedKeys = %v, want [api_keys]", cfg.Settings.EncryptedKeys)
	}
	if cfg.Network.Timeout != DefaultTimeout {
		t.Errorf("Network.Timeout = %v, want %v", cfg.Network.Timeout, DefaultTimeout)
	}
	if cfg.Network.Proxy.Mode != "system" {
		t.Errorf("Network.Proxy.Mode = %q, want system", cfg.Network.Proxy.Mode)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
}

func TestLoad_EmptyEncryptedKeysDisablesSealing(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", "settings:\n  encrypted_keys: []\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Settings.EncryptedKeys == nil || len(cfg.Settings.EncryptedKeys) != 0 {
		t.Errorf("Settings.EncryptedKeys = %#v, want empty non-nil", cfg.Settings.EncryptedKeys)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_ADUI_ADDR", "localhost:1234")
	t.Setenv("TEST_ADUI_PROXY", "socks5://127.0.0.1:1080")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "${TEST_ADUI_ADDR}"
network:
  proxy:
    mode: manual
    url: "${TEST_ADUI_PROXY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "localhost:1234" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "localhost:1234")
	}
	if cfg.Network.Proxy.URL != "socks5://127.0.0.1:1080" {
		t.Errorf("Network.Proxy.URL = %q", cfg.Network.Proxy.URL)
	}
}

func TestExpandEnvVars_UnsetVariable(t *testing.T) {
	os.Unsetenv("TEST_ADUI_UNSET_VAR")
	got := expandEnvVars("value: ${TEST_ADUI_UNSET_VAR}")
	if got != "value: " {
		t.Errorf("expandEnvVars() = %q, want %q", got, "value: ")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"invalid yaml", "c.yaml", "server: [unclosed", "parsing config file"},
		{"invalid toml", "c.toml", "[server\n", "parsing config file"},
		{"bad duration", "c.yaml", "network:\n  timeout: soon\n", "network.timeout"},
		{"negative duration", "c.yaml", "network:\n  timeout: -5s\n", "must not be negative"},
		{"manual proxy without url", "c.yaml", "network:\n  proxy:\n    mode: manual\n", "network.proxy.url"},
		{"unknown proxy mode", "c.yaml", "network:\n  proxy:\n    mode: pac\n", "network.proxy.mode"},
		{"negative rate", "c.yaml", "network:\n  rate_limit: -1\n", "network.rate_limit"},
		{"negative concurrency", "c.yaml", "tools:\n  concurrent_activation: -2\n", "tools.concurrent_activation"},
		{"bad log format", "c.yaml", "logging:\n  format: xml\n", "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}

	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("LoadOrDefault() HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
}

func TestPath(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv("ADUI_CONFIG", "/etc/adui.toml")
		if got := Path(); got != "/etc/adui.toml" {
			t.Errorf("Path() = %q", got)
		}
	})

	t.Run("xdg", func(t *testing.T) {
		t.Setenv("ADUI_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		want := filepath.Join("/xdg", "adui", "config.yaml")
		if got := Path(); got != want {
			t.Errorf("Path() = %q, want %q", got, want)
		}
	})
}
