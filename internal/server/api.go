// ABOUTME: HTTP API handlers for customer record operations and exports
// ABOUTME: Maps store errors onto the JSON error envelope and records the mutation journal

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/casebook/internal/export"
	"github.com/2389/casebook/internal/store"
)

// AddTicketsRequest is the JSON request body for POST /api/customers/{name}/tickets.
// A nil Notes leaves the customer's notes untouched; an empty string clears them.
type AddTicketsRequest struct {
	TicketKeys []string `json:"ticket_keys"`
	Notes      *string  `json:"notes,omitempty"`
}

// RemoveTicketsRequest is the JSON request body for DELETE /api/customers/{name}/tickets.
type RemoveTicketsRequest struct {
	TicketKeys []string `json:"ticket_keys"`
}

// AddCommentRequest is the JSON request body for POST /api/customers/{name}/tickets/{key}/comments.
type AddCommentRequest struct {
	Comment string `json:"comment"`
}

// UpdateNotesRequest is the JSON request body for PUT /api/customers/{name}/notes.
type UpdateNotesRequest struct {
	Notes *string `json:"notes"`
}

// ListCustomersResponse is the JSON response for GET /api/customers.
type ListCustomersResponse struct {
	Customers []store.CustomerSummary `json:"customers"`
	Count     int                     `json:"count"`
}

// AuditResponse is the JSON response for GET /api/audit.
type AuditResponse struct {
	Entries []store.JournalEntry `json:"entries"`
	Count   int                  `json:"count"`
}

// handleListCustomers handles GET /api/customers requests.
func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	summaries, err := s.store.ListCustomers(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	response := ListCustomersResponse{Customers: summaries, Count: len(summaries)}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleCustomerRoutes dispatches /api/customers/{name}/... requests.
// Segments are taken from the escaped path so a customer name containing a
// slash stays one segment.
func (s *Server) handleCustomerRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/api/customers/")
	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "invalid path encoding")
			return
		}
		segments[i] = decoded
	}

	switch {
	case len(segments) == 2 && segments[1] == "tickets":
		s.handleTickets(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "notes":
		s.handleUpdateNotes(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "export":
		s.handleExport(w, r, segments[0])
	case len(segments) == 4 && segments[1] == "tickets" && segments[3] == "comments":
		s.handleAddComment(w, r, segments[0], segments[2])
	default:
		s.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

// handleTickets routes ticket collection requests by HTTP method.
func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetTickets(w, r, name)
	case http.MethodPost:
		s.handleAddTickets(w, r, name)
	case http.MethodDelete:
		s.handleRemoveTickets(w, r, name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleGetTickets handles GET /api/customers/{name}/tickets requests.
// Returns the full customer record.
func (s *Server) handleGetTickets(w http.ResponseWriter, r *http.Request, name string) {
	customer, err := s.store.GetCustomer(r.Context(), name)
	if err != nil {
		s.storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(customer)
}

// handleAddTickets handles POST /api/customers/{name}/tickets requests.
// Creates the customer on first contact; re-added keys are no-ops.
func (s *Server) handleAddTickets(w http.ResponseWriter, r *http.Request, name string) {
	var req AddTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	customer, err := s.store.AddTickets(r.Context(), name, req.TicketKeys, req.Notes)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.recordJournal(r, store.JournalAddTickets, name, strings.Join(req.TicketKeys, ", "))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(customer)
}

// handleRemoveTickets handles DELETE /api/customers/{name}/tickets requests.
// Keys the customer does not track are ignored.
func (s *Server) handleRemoveTickets(w http.ResponseWriter, r *http.Request, name string) {
	var req RemoveTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	customer, err := s.store.RemoveTickets(r.Context(), name, req.TicketKeys)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.recordJournal(r, store.JournalRemoveTickets, name, strings.Join(req.TicketKeys, ", "))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(customer)
}

// handleAddComment handles POST /api/customers/{name}/tickets/{key}/comments requests.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, name, ticketKey string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	customer, err := s.store.AddComment(r.Context(), name, ticketKey, req.Comment)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.recordJournal(r, store.JournalAddComment, name, ticketKey)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(customer)
}

// handleUpdateNotes handles PUT /api/customers/{name}/notes requests.
// Creates the customer when it does not exist yet.
func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Notes == nil {
		s.sendJSONError(w, http.StatusBadRequest, "notes is required")
		return
	}

	customer, err := s.store.UpdateNotes(r.Context(), name, *req.Notes)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.recordJournal(r, store.JournalUpdateNotes, name, "")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(customer)
}

// handleExport handles GET /api/customers/{name}/export requests.
// Query parameters: format (markdown|html), include_jira, save_file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	opts := export.Options{Format: q.Get("format"), Persist: true}

	if v := q.Get("include_jira"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "include_jira must be a boolean")
			return
		}
		opts.IncludeEnrichment = b
	}

	if v := q.Get("save_file"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "save_file must be a boolean")
			return
		}
		opts.Persist = b
	}

	result, err := s.exporter.Export(r.Context(), name, opts)
	if err != nil {
		s.storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// handleStats handles GET /api/stats requests.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// handleAudit handles GET /api/audit requests.
// Returns recent journal entries, newest first, optionally limited by ?limit=N.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := AuditResponse{Entries: entries, Count: len(entries)}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// storeError maps a store error onto the HTTP error envelope. Anything that
// is neither a not-found nor an invalid-input is a storage fault: logged
// with detail, reported generically.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidInput):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("storage failure", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// recordJournal appends an audit entry for a mutation that already
// succeeded. Journal trouble is logged and never surfaces to the caller.
func (s *Server) recordJournal(r *http.Request, action store.JournalAction, customer, detail string) {
	entry := &store.JournalEntry{Action: action, Customer: customer, Detail: detail}
	if err := s.journal.Record(r.Context(), entry); err != nil {
		s.logger.Warn("journal write failed", "action", action, "customer", customer, "error", err)
	}
}
