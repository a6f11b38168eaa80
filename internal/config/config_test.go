// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.yaml")

	configContent := `
server:
  http_addr: "0.0.0.0:9090"

storage:
  dir: "./records"
  export_dir: "./out"
  journal_db: "./records/audit.db"

auth:
  require: true
  api_key: "secret-key"

jira:
  base_url: "https://example.atlassian.net"
  email: "ops@example.com"
  api_token: "jira-token"
  timeout: "10s"
  cache_ttl: "5m"

logging:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify server config
	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9090")
	}

	// Verify storage config
	if cfg.Storage.Dir != "./records" {
		t.Errorf("Storage.Dir = %q, want %q", cfg.Storage.Dir, "./records")
	}
	if cfg.Storage.ExportDir != "./out" {
		t.Errorf("Storage.ExportDir = %q, want %q", cfg.Storage.ExportDir, "./out")
	}
	if cfg.Storage.JournalDB != "./records/audit.db" {
		t.Errorf("Storage.JournalDB = %q, want %q", cfg.Storage.JournalDB, "./records/audit.db")
	}

	// Verify auth config
	if !cfg.Auth.Require {
		t.Error("Auth.Require = false, want true")
	}
	if cfg.Auth.APIKey != "secret-key" {
		t.Errorf("Auth.APIKey = %q, want %q", cfg.Auth.APIKey, "secret-key")
	}

	// Verify jira config with duration parsing
	if cfg.Jira.BaseURL != "https://example.atlassian.net" {
		t.Errorf("Jira.BaseURL = %q, want %q", cfg.Jira.BaseURL, "https://example.atlassian.net")
	}
	if cfg.Jira.Email != "ops@example.com" {
		t.Errorf("Jira.Email = %q, want %q", cfg.Jira.Email, "ops@example.com")
	}
	if cfg.Jira.APIToken != "jira-token" {
		t.Errorf("Jira.APIToken = %q, want %q", cfg.Jira.APIToken, "jira-token")
	}
	if cfg.Jira.Timeout != 10*time.Second {
		t.Errorf("Jira.Timeout = %v, want %v", cfg.Jira.Timeout, 10*time.Second)
	}
	if cfg.Jira.CacheTTL != 5*time.Minute {
		t.Errorf("Jira.CacheTTL = %v, want %v", cfg.Jira.CacheTTL, 5*time.Minute)
	}

	// Verify logging config
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.yaml")
	storageDir := filepath.Join(tmpDir, "data")

	configContent := `
storage:
  dir: "` + storageDir + `"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:8080" {
		t.Errorf("Server.HTTPAddr = %q, want default %q", cfg.Server.HTTPAddr, "localhost:8080")
	}

	wantExportDir := filepath.Join(storageDir, "exports")
	if cfg.Storage.ExportDir != wantExportDir {
		t.Errorf("Storage.ExportDir = %q, want derived %q", cfg.Storage.ExportDir, wantExportDir)
	}

	wantJournalDB := filepath.Join(storageDir, "journal.db")
	if cfg.Storage.JournalDB != wantJournalDB {
		t.Errorf("Storage.JournalDB = %q, want derived %q", cfg.Storage.JournalDB, wantJournalDB)
	}

	if cfg.Jira.Timeout != 5*time.Second {
		t.Errorf("Jira.Timeout = %v, want default %v", cfg.Jira.Timeout, 5*time.Second)
	}
	if cfg.Jira.CacheTTL != 60*time.Second {
		t.Errorf("Jira.CacheTTL = %v, want default %v", cfg.Jira.CacheTTL, 60*time.Second)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, "text")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CASEBOOK_API_KEY", "key-from-env")
	t.Setenv("TEST_JIRA_TOKEN", "token-from-env")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.yaml")

	configContent := `
storage:
  dir: "./records"

auth:
  require: true
  api_key: "${TEST_CASEBOOK_API_KEY}"

jira:
  base_url: "https://example.atlassian.net"
  email: "ops@example.com"
  api_token: "${TEST_JIRA_TOKEN}"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.APIKey != "key-from-env" {
		t.Errorf("Auth.APIKey = %q, want %q", cfg.Auth.APIKey, "key-from-env")
	}
	if cfg.Jira.APIToken != "token-from-env" {
		t.Errorf("Jira.APIToken = %q, want %q", cfg.Jira.APIToken, "token-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.yaml")

	// The unset key expands to "", which fails validation with require: true
	configContent := `
storage:
  dir: "./records"

auth:
  require: true
  api_key: "${UNSET_VAR_FOR_TEST}"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for empty expanded api_key, got nil")
	}
	if !strings.Contains(err.Error(), "auth.api_key is required") {
		t.Errorf("Load() error = %q, want error containing %q", err.Error(), "auth.api_key is required")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/server.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.yaml")

	configContent := `
server:
  http_addr "missing colon"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.yaml")

	configContent := `
storage:
  dir: "./records"

jira:
  timeout: "not-a-duration"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing storage dir",
			configContent: `
server:
  http_addr: "localhost:8080"
`,
			wantErrSubstr: "storage.dir is required",
		},
		{
			name: "auth required without key",
			configContent: `
storage:
  dir: "./records"
auth:
  require: true
`,
			wantErrSubstr: "auth.api_key is required",
		},
		{
			name: "jira base_url without credentials",
			configContent: `
storage:
  dir: "./records"
jira:
  base_url: "https://example.atlassian.net"
`,
			wantErrSubstr: "jira.email and jira.api_token are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "server.yaml")

			err := os.WriteFile(configPath, []byte(tt.configContent), 0644)
			if err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			_, err = Load(configPath)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate_ConditionalRequirements(t *testing.T) {
	tests := []struct {
		name          string
		cfg           Config
		wantErr       bool
		wantErrSubstr string
	}{
		{
			name: "auth disabled allows empty key",
			cfg: Config{
				Server:  ServerConfig{HTTPAddr: "localhost:8080"},
				Storage: StorageConfig{Dir: "./records"},
				Auth:    AuthConfig{Require: false, APIKey: ""},
			},
			wantErr: false,
		},
		{
			name: "auth enabled requires key",
			cfg: Config{
				Server:  ServerConfig{HTTPAddr: "localhost:8080"},
				Storage: StorageConfig{Dir: "./records"},
				Auth:    AuthConfig{Require: true, APIKey: ""},
			},
			wantErr:       true,
			wantErrSubstr: "auth.api_key is required",
		},
		{
			name: "jira disabled allows empty credentials",
			cfg: Config{
				Server:  ServerConfig{HTTPAddr: "localhost:8080"},
				Storage: StorageConfig{Dir: "./records"},
				Jira:    JiraConfig{BaseURL: ""},
			},
			wantErr: false,
		},
		{
			name: "jira enabled requires credentials",
			cfg: Config{
				Server:  ServerConfig{HTTPAddr: "localhost:8080"},
				Storage: StorageConfig{Dir: "./records"},
				Jira:    JiraConfig{BaseURL: "https://example.atlassian.net", Email: "ops@example.com"},
			},
			wantErr:       true,
			wantErrSubstr: "jira.email and jira.api_token are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
					return
				}
				if !strings.Contains(err.Error(), tt.wantErrSubstr) {
					t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
				}
			} else {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			}
		})
	}
}
