// ABOUTME: Configuration loading and parsing for casebook-server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a field unset.
const (
	defaultHTTPAddr  = "localhost:8080"
	defaultTimeout   = "5s"
	defaultCacheTTL  = "60s"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config represents the complete casebook-server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Jira    JiraConfig    `yaml:"jira"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// StorageConfig holds customer record storage configuration.
// ExportDir and JournalDB default to paths under Dir when unset.
type StorageConfig struct {
	Dir       string `yaml:"dir"`
	ExportDir string `yaml:"export_dir"`
	JournalDB string `yaml:"journal_db"`
}

// AuthConfig holds API key authentication configuration
type AuthConfig struct {
	Require bool   `yaml:"require"`
	APIKey  string `yaml:"api_key"`
}

// JiraConfig holds JIRA enrichment configuration. An empty BaseURL
// disables enrichment lookups entirely.
type JiraConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`

	Timeout  time.Duration `yaml:"-"`
	CacheTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw  string `yaml:"timeout"`
	CacheTTLRaw string `yaml:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Fill defaults before parsing durations so the parsed values are
	// always populated
	applyDefaults(&cfg)

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills optional fields that the config file left unset.
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = defaultHTTPAddr
	}

	// Derived paths need a storage dir; validation catches the empty case
	if cfg.Storage.Dir != "" {
		if cfg.Storage.ExportDir == "" {
			cfg.Storage.ExportDir = filepath.Join(cfg.Storage.Dir, "exports")
		}
		if cfg.Storage.JournalDB == "" {
			cfg.Storage.JournalDB = filepath.Join(cfg.Storage.Dir, "journal.db")
		}
	}

	if cfg.Jira.TimeoutRaw == "" {
		cfg.Jira.TimeoutRaw = defaultTimeout
	}
	if cfg.Jira.CacheTTLRaw == "" {
		cfg.Jira.CacheTTLRaw = defaultCacheTTL
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}

	// A shared key must exist before auth can be enforced
	if c.Auth.Require && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required when auth.require is true")
	}

	// A JIRA endpoint without credentials would fail every lookup
	if c.Jira.BaseURL != "" && (c.Jira.Email == "" || c.Jira.APIToken == "") {
		return fmt.Errorf("jira.email and jira.api_token are required when jira.base_url is set")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Jira.TimeoutRaw != "" {
		cfg.Jira.Timeout, err = time.ParseDuration(cfg.Jira.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing jira.timeout %q: %w", cfg.Jira.TimeoutRaw, err)
		}
	}

	if cfg.Jira.CacheTTLRaw != "" {
		cfg.Jira.CacheTTL, err = time.ParseDuration(cfg.Jira.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing jira.cache_ttl %q: %w", cfg.Jira.CacheTTLRaw, err)
		}
	}

	return nil
}
