// ABOUTME: Entry point for the casebook MCP bridge
// ABOUTME: Exposes casebook-server operations as MCP tools over stdio or HTTP

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/casebook/internal/client"
	"github.com/2389/casebook/internal/mcp"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
    ╭────────────────────────────────╮
    │                                │
    │   ┏━╸┏━┓┏━╸┏━╸┏┓ ┏━┓┏━┓╻┏     │
    │   ┃  ┣━┫┗━┓┣╸ ┣┻┓┃ ┃┃ ┃┣┻┓    │
    │   ┗━╸╹ ╹╺━┛┗━╸┗━┛┗━┛┗━┛╹ ╹    │
    │                                │
    │        casebook-mcp bridge     │
    │                                │
    ╰────────────────────────────────╯
`

// getConfigPath returns the path to the bridge config file.
// Priority: CASEBOOK_MCP_CONFIG env var > XDG_CONFIG_HOME/casebook/mcp-bridge.toml > ~/.config/casebook/mcp-bridge.toml
func getConfigPath() string {
	if envPath := os.Getenv("CASEBOOK_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "mcp-bridge.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "casebook", "mcp-bridge.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := getConfigPath()

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging.Level)

	// On the stdio transport stdout carries protocol frames, so the banner
	// only appears when serving HTTP
	if cfg.MCP.Transport == "http" {
		cyan := color.New(color.FgCyan)
		cyan.Print(banner)

		gray := color.New(color.FgHiBlack)
		gray.Printf("    version: %s\n\n", version)

		green := color.New(color.FgGreen)
		green.Print("    ▶ ")
		fmt.Printf("Config: %s\n", configPath)
		green.Print("    ▶ ")
		fmt.Printf("Server: %s\n", cfg.Server.BaseURL)
		green.Print("    ▶ ")
		fmt.Printf("Listen: %s\n", cfg.MCP.Listen)
		fmt.Println()
	}

	// API client for casebook-server
	tracker := client.New(cfg.Server.BaseURL, cfg.Server.APIKey, cfg.Server.Timeout())

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Probe the server so a bad URL or key shows up at startup instead of
	// on the first tool call. The bridge still starts: the server may come
	// up later.
	probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
	defer probeCancel()
	if health, err := tracker.Health(probeCtx); err != nil {
		logger.Warn("casebook-server not reachable", "url", cfg.Server.BaseURL, "error", err)
	} else {
		logger.Info("connected to casebook-server", "url", cfg.Server.BaseURL, "server_version", health.Version)
	}

	srv, err := mcp.NewServer(mcp.Config{
		Tracker:     tracker,
		Logger:      logger,
		RequireAuth: cfg.MCP.RequireAuth,
		APIKey:      cfg.MCP.APIKey,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	switch cfg.MCP.Transport {
	case "stdio":
		return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	default:
		return serveHTTP(ctx, cfg.MCP.Listen, srv, logger)
	}
}

// serveHTTP runs the Streamable HTTP transport until the context is
// cancelled or the listener fails.
func serveHTTP(ctx context.Context, addr string, srv *mcp.Server, logger *slog.Logger) error {
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("MCP HTTP transport listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := httpServer.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	// Stderr keeps log lines out of the stdio protocol stream
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
