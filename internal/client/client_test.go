// ABOUTME: Tests for the casebook API client against a real server handler
// ABOUTME: Covers record round-trips, auth failures, and error decoding

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389/casebook/internal/config"
	"github.com/2389/casebook/internal/export"
	"github.com/2389/casebook/internal/server"
)

func newTestBackend(t *testing.T, requireAuth bool, apiKey string) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{
			HTTPAddr: "localhost:0",
		},
		Storage: config.StorageConfig{
			Dir:       filepath.Join(dir, "data"),
			ExportDir: filepath.Join(dir, "exports"),
			JournalDB: filepath.Join(dir, "journal.db"),
		},
		Auth: config.AuthConfig{
			Require: requireAuth,
			APIKey:  apiKey,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := server.New(cfg, "test", logger)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func strPtr(s string) *string {
	return &s
}

func TestClient_RecordLifecycle(t *testing.T) {
	ts := newTestBackend(t, false, "")
	c := New(ts.URL, "", 0)
	ctx := context.Background()

	customer, err := c.AddTickets(ctx, "Acme Corp", []string{"JIRA-1", "JIRA-2"}, strPtr("vip customer"))
	if err != nil {
		t.Fatalf("AddTickets() error = %v", err)
	}
	if customer.Name != "Acme Corp" {
		t.Errorf("Name = %q, want %q", customer.Name, "Acme Corp")
	}
	if len(customer.Tickets) != 2 {
		t.Errorf("Tickets len = %d, want 2", len(customer.Tickets))
	}
	if customer.Notes != "vip customer" {
		t.Errorf("Notes = %q, want %q", customer.Notes, "vip customer")
	}

	customer, err = c.AddComment(ctx, "Acme Corp", "JIRA-1", "kickoff call done")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if len(customer.Tickets[0].Comments) != 1 {
		t.Fatalf("Comments len = %d, want 1", len(customer.Tickets[0].Comments))
	}
	if customer.Tickets[0].Comments[0].Body != "kickoff call done" {
		t.Errorf("comment = %q, want %q", customer.Tickets[0].Comments[0].Body, "kickoff call done")
	}

	customer, err = c.UpdateNotes(ctx, "Acme Corp", "churned")
	if err != nil {
		t.Fatalf("UpdateNotes() error = %v", err)
	}
	if customer.Notes != "churned" {
		t.Errorf("Notes = %q, want %q", customer.Notes, "churned")
	}

	customer, err = c.RemoveTickets(ctx, "Acme Corp", []string{"JIRA-2"})
	if err != nil {
		t.Fatalf("RemoveTickets() error = %v", err)
	}
	if len(customer.Tickets) != 1 || customer.Tickets[0].Key != "JIRA-1" {
		t.Errorf("tickets after removal = %+v, want only JIRA-1", customer.Tickets)
	}

	summaries, err := c.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("ListCustomers() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries len = %d, want 1", len(summaries))
	}
	if summaries[0].Name != "Acme Corp" || summaries[0].TicketCount != 1 {
		t.Errorf("summary = %+v, want Acme Corp with 1 ticket", summaries[0])
	}

	fetched, err := c.GetCustomer(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if fetched.Name != "Acme Corp" {
		t.Errorf("fetched Name = %q, want %q", fetched.Name, "Acme Corp")
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	ts := newTestBackend(t, false, "")
	c := New(ts.URL, "", 0)

	_, err := c.GetCustomer(context.Background(), "Ghost")
	if err == nil {
		t.Fatal("expected error for unknown customer")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusNotFound)
	}
	if !strings.Contains(apiErr.Message, "not found") {
		t.Errorf("Message = %q, want substring %q", apiErr.Message, "not found")
	}
}

func TestAddTickets_RejectsEmptyKeys(t *testing.T) {
	ts := newTestBackend(t, false, "")
	c := New(ts.URL, "", 0)

	_, err := c.AddTickets(context.Background(), "Acme", nil, nil)
	if err == nil {
		t.Fatal("expected error for empty ticket keys")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusBadRequest)
	}
}

func TestClient_AuthRequired(t *testing.T) {
	ts := newTestBackend(t, true, "secret-key")
	ctx := context.Background()

	wrong := New(ts.URL, "wrong-key", 0)
	_, err := wrong.ListCustomers(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("ListCustomers() with wrong key = %v, want 401 APIError", err)
	}

	// Health stays open without credentials
	unauth := New(ts.URL, "", 0)
	if _, err := unauth.Health(ctx); err != nil {
		t.Errorf("Health() without key error = %v", err)
	}

	right := New(ts.URL, "secret-key", 0)
	if _, err := right.ListCustomers(ctx); err != nil {
		t.Errorf("ListCustomers() with valid key error = %v", err)
	}
}

func TestExport(t *testing.T) {
	ts := newTestBackend(t, false, "")
	c := New(ts.URL, "", 0)
	ctx := context.Background()

	if _, err := c.AddTickets(ctx, "Acme", []string{"JIRA-1"}, nil); err != nil {
		t.Fatalf("AddTickets() error = %v", err)
	}

	result, err := c.Export(ctx, "Acme", ExportOptions{Format: export.FormatMarkdown, SaveFile: false})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Format != export.FormatMarkdown {
		t.Errorf("Format = %q, want %q", result.Format, export.FormatMarkdown)
	}
	if !strings.Contains(result.Content, "# Customer Report: Acme") {
		t.Errorf("content missing report header:\n%s", result.Content)
	}
	if result.Location != "" {
		t.Errorf("Location = %q, want empty without save_file", result.Location)
	}

	htmlResult, err := c.Export(ctx, "Acme", ExportOptions{Format: export.FormatHTML, SaveFile: false})
	if err != nil {
		t.Fatalf("Export() html error = %v", err)
	}
	if !strings.Contains(htmlResult.Content, "<h1") {
		t.Errorf("html content missing heading:\n%s", htmlResult.Content)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestBackend(t, false, "")
	c := New(ts.URL+"/", "", 0) // trailing slash is trimmed

	info, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if info.Status != "healthy" {
		t.Errorf("Status = %q, want %q", info.Status, "healthy")
	}
	if info.Name != "casebook-server" {
		t.Errorf("Name = %q, want %q", info.Name, "casebook-server")
	}
}

func TestErrorFromResponse_PlainBody(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded\n"))
	}))
	defer stub.Close()

	c := New(stub.URL, "", 0)
	_, err := c.ListCustomers(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusBadGateway)
	}
	if apiErr.Message != "upstream exploded" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "upstream exploded")
	}
}

func TestErrorFromResponse_JSONBody(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "boom"}`))
	}))
	defer stub.Close()

	c := New(stub.URL, "", 0)
	_, err := c.ListCustomers(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Message != "boom" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "boom")
	}
}
