// ABOUTME: Configuration loading for the casebook MCP bridge
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	MCP     MCPConfig     `toml:"mcp"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout for casebook-server calls.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type MCPConfig struct {
	Transport   string `toml:"transport"` // "stdio" or "http"
	Listen      string `toml:"listen"`    // HTTP listen address, http transport only
	RequireAuth bool   `toml:"require_auth"`
	APIKey      string `toml:"api_key"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 30,
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Listen:    "localhost:8765",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from the given path, expanding environment variables.
// A missing file is not an error; the bridge runs on defaults so MCP hosts
// can launch it with nothing but environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("validating config: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets the environment win over file values, so hosts can
// point one installed bridge at different servers.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CASEBOOK_SERVER_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("CASEBOOK_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https scheme")
	}
	if c.Server.TimeoutSeconds < 0 {
		return fmt.Errorf("server.timeout_seconds must not be negative")
	}

	switch c.MCP.Transport {
	case "stdio":
	case "http":
		if c.MCP.Listen == "" {
			return fmt.Errorf("mcp.listen is required for the http transport")
		}
	default:
		return fmt.Errorf("mcp.transport must be \"stdio\" or \"http\", got %q", c.MCP.Transport)
	}

	if c.MCP.RequireAuth && c.MCP.APIKey == "" {
		return fmt.Errorf("mcp.api_key is required when mcp.require_auth is set")
	}

	return nil
}
