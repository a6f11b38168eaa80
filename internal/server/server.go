// ABOUTME: Server orchestrator wiring the record store, journal, and export engine
// ABOUTME: Owns the HTTP listener lifecycle, health endpoints, and graceful shutdown

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/casebook/internal/auth"
	"github.com/2389/casebook/internal/config"
	"github.com/2389/casebook/internal/export"
	"github.com/2389/casebook/internal/jira"
	"github.com/2389/casebook/internal/store"
)

// Server owns the HTTP surface of casebook-server: the customer record
// store, the mutation journal, the export engine, and the enrichment
// resolver behind it.
type Server struct {
	config     *config.Config
	store      store.Store
	journal    *store.Journal
	exporter   *export.Engine
	httpServer *http.Server
	logger     *slog.Logger
	version    string
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse is the JSON response for GET /ready.
type ReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// New creates a new Server instance with the given configuration.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	fileStore, err := store.NewFileStore(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	journal, err := store.NewJournal(cfg.Storage.JournalDB)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	resolver := buildResolver(cfg, logger)
	exporter := export.NewEngine(fileStore, resolver, cfg.Storage.ExportDir)

	srv := &Server{
		config:   cfg,
		store:    fileStore,
		journal:  journal,
		exporter: exporter,
		logger:   logger.With("component", "server"),
		version:  version,
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/ready", srv.handleReady)

	srv.registerAPIRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// buildResolver assembles the enrichment chain: REST client wrapped in a TTL
// cache. An unconfigured client resolves every key as unavailable, which is
// exactly the degraded behavior exports expect.
func buildResolver(cfg *config.Config, logger *slog.Logger) jira.Resolver {
	client := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Jira.Timeout)
	if !client.Configured() {
		logger.Info("JIRA enrichment not configured, lookups report unavailable")
	}

	if cfg.Jira.CacheTTL > 0 {
		return jira.NewCachedResolver(client, cfg.Jira.CacheTTL)
	}
	return client
}

// registerAPIRoutes registers /api routes on the mux behind the key check.
func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	guard := auth.Middleware(s.config.Auth.APIKey, s.config.Auth.Require)

	mux.Handle("/api/customers", guard(http.HandlerFunc(s.handleListCustomers)))
	mux.Handle("/api/customers/", guard(http.HandlerFunc(s.handleCustomerRoutes)))
	mux.Handle("/api/stats", guard(http.HandlerFunc(s.handleStats)))
	mux.Handle("/api/audit", guard(http.HandlerFunc(s.handleAudit)))

	if s.config.Auth.Require {
		s.logger.Info("API key auth enabled")
	} else {
		s.logger.Warn("API key auth disabled - requests are unauthenticated")
	}
}

// Handler returns the server's root handler, mainly for tests that drive
// the full mux without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is already
// canceled by the time shutdown starts.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "journal close", s.journal.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:    "healthy",
		Name:      "casebook-server",
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports whether the storage directory accepts writes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	probe, err := os.CreateTemp(s.config.Storage.Dir, ".ready-*")
	if err != nil {
		s.logger.Error("storage not writable", "dir", s.config.Storage.Dir, "error", err)
		s.sendJSONError(w, http.StatusServiceUnavailable, "storage not writable")
		return
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
