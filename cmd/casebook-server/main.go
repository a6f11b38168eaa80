// ABOUTME: Entry point for the casebook record server
// ABOUTME: Serves the customer ticket store and export API over HTTP

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/casebook/internal/config"
	"github.com/2389/casebook/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                         _                     _
  ___   __ _  ___   ___ | |__    ___    ___  | | __
 / __| / _' |/ __| / _ \| '_ \  / _ \  / _ \ | |/ /
| (__ | (_| |\__ \|  __/| |_) || (_) || (_) ||   <
 \___| \__,_||___/ \___||_.__/  \___/  \___/ |_|\_\
`

// getConfigPath returns the path to the server config file.
// Priority: CASEBOOK_CONFIG env var > XDG_CONFIG_HOME/casebook/server.yaml > ~/.config/casebook/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CASEBOOK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "casebook", "server.yaml")
}

// getDataPath returns the path to the casebook data directory.
// Priority: XDG_DATA_HOME/casebook > ~/.local/share/casebook
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "casebook")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: casebook-server <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the record server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check server health")
		fmt.Println("  stats    Show record counts")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "stats":
		err = runStats(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Records: %s\n", cfg.Storage.Dir)
	green.Print("    ▶ ")
	fmt.Printf("Exports: %s\n", cfg.Storage.ExportDir)

	// JIRA enrichment status
	green.Print("    ▶ ")
	fmt.Printf("JIRA:    ")
	if cfg.Jira.BaseURL != "" {
		cyan.Print(cfg.Jira.BaseURL)
	} else {
		gray.Print("not configured")
	}
	fmt.Println()

	if !cfg.Auth.Require {
		yellow.Println("    ▶ API key auth disabled")
	}

	fmt.Println()

	logger.Info("starting casebook-server",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"storage_dir", cfg.Storage.Dir,
	)

	// Create and run server
	srv, err := server.New(cfg, version, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runStats(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/stats", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if cfg.Auth.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Auth.APIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("stats request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var stats struct {
		Customers   int    `json:"customers"`
		Tickets     int    `json:"tickets"`
		Comments    int    `json:"comments"`
		GeneratedAt string `json:"generatedAt"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Printf("Customers: %d\n", stats.Customers)
	fmt.Printf("Tickets:   %d\n", stats.Tickets)
	fmt.Printf("Comments:  %d\n", stats.Comments)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("casebook-server configuration setup")
	fmt.Println("===================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultStorageDir := filepath.Join(defaultDataPath, "records")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// Storage
	fmt.Println("\n--- Storage Configuration ---")
	storageDir := prompt(reader, "Record directory", defaultStorageDir)
	exportDir := prompt(reader, "Export directory", filepath.Join(storageDir, "exports"))

	// Auth
	fmt.Println("\n--- Authentication ---")
	requireStr := prompt(reader, "Require API key?", "yes")
	requireAuth := strings.ToLower(requireStr) == "yes" || strings.ToLower(requireStr) == "y"

	var apiKey string
	if requireAuth {
		apiKey = prompt(reader, "API key (leave empty to generate)", "")
		if apiKey == "" {
			generated, err := generateAPIKey()
			if err != nil {
				return fmt.Errorf("generating API key: %w", err)
			}
			apiKey = generated
			fmt.Printf("Generated API key: %s\n", apiKey)
		}
	}

	// JIRA enrichment
	fmt.Println("\n--- JIRA Enrichment ---")
	enableJira := prompt(reader, "Enable JIRA enrichment?", "no")
	jiraEnabled := strings.ToLower(enableJira) == "yes" || strings.ToLower(enableJira) == "y"

	var jiraURL, jiraEmail string
	if jiraEnabled {
		jiraURL = prompt(reader, "JIRA base URL", "https://yourcompany.atlassian.net")
		jiraEmail = prompt(reader, "JIRA account email", "")
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# casebook-server configuration\n")
	cfg.WriteString("# Generated by casebook-server init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("storage:\n")
	cfg.WriteString(fmt.Sprintf("  dir: \"%s\"\n", storageDir))
	cfg.WriteString(fmt.Sprintf("  export_dir: \"%s\"\n", exportDir))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  require: %t\n", requireAuth))
	if apiKey != "" {
		cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apiKey))
	}
	cfg.WriteString("\n")

	cfg.WriteString("jira:\n")
	if jiraEnabled {
		cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", jiraURL))
		cfg.WriteString(fmt.Sprintf("  email: \"%s\"\n", jiraEmail))
		cfg.WriteString("  api_token: \"${JIRA_API_TOKEN}\"\n")
		cfg.WriteString("  timeout: \"5s\"\n")
		cfg.WriteString("  cache_ttl: \"60s\"\n")
	} else {
		cfg.WriteString("  base_url: \"\"\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure storage directory exists
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Record directory: %s\n", storageDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  casebook-server serve\n")

	return nil
}

// generateAPIKey returns a random URL-safe key for the shared-secret check.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
