// Package config handles configuration loading for adui.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Missing values are filled with defaults and the result is
// validated before use.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ADUI_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/adui/config.yaml
//  3. ~/.config/adui/config.yaml
//
// A path ending in .toml is parsed as TOML; anything else as YAML.
// LoadOrDefault falls back to Default when the file does not exist.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	network:
//	  proxy:
//	    mode: manual
//	    url: "${HTTPS_PROXY}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:7420"
//
//	database:
//	  path: "~/.local/share/adui/adui.db"  # default: <data_dir>/adui.db
//
//	data_dir: "~/.local/share/adui"        # holds master.key
//
//	settings:
//	  encrypted_keys: [api_keys]           # [] stores everything in plaintext
//
//	network:
//	  timeout: "30s"
//	  rate_limit: 0                        # requests per second, 0 = unlimited
//	  burst: 1
//	  proxy:
//	    mode: system                       # disable | system | manual
//	    url: ""
//
//	tools:
//	  concurrent_activation: 0             # >1 activates tools in parallel
//	  disabled: []                         # tool ids never registered
//
//	logging:
//	  level: info                          # debug | info | warn | error
//	  format: text                         # text | json
package config
