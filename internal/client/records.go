// ABOUTME: Record operations of the casebook-server API as typed client methods
// ABOUTME: Covers listing, ticket mutations, comments, notes, and exports

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389/casebook/internal/export"
	"github.com/2389/casebook/internal/store"
)

type addTicketsBody struct {
	TicketKeys []string `json:"ticket_keys"`
	Notes      *string  `json:"notes,omitempty"`
}

type removeTicketsBody struct {
	TicketKeys []string `json:"ticket_keys"`
}

type commentBody struct {
	Comment string `json:"comment"`
}

type notesBody struct {
	Notes string `json:"notes"`
}

// ListCustomers returns summaries for every customer, sorted by name.
func (c *Client) ListCustomers(ctx context.Context) ([]store.CustomerSummary, error) {
	var resp struct {
		Customers []store.CustomerSummary `json:"customers"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/customers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Customers, nil
}

// GetCustomer fetches the full record for one customer.
func (c *Client) GetCustomer(ctx context.Context, name string) (*store.Customer, error) {
	path := fmt.Sprintf("/api/customers/%s/tickets", url.PathEscape(name))

	var customer store.Customer
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// AddTickets associates ticket keys with a customer, creating the record
// when it does not exist yet. A nil notes pointer leaves the stored notes
// untouched.
func (c *Client) AddTickets(ctx context.Context, name string, keys []string, notes *string) (*store.Customer, error) {
	path := fmt.Sprintf("/api/customers/%s/tickets", url.PathEscape(name))

	var customer store.Customer
	if err := c.doJSON(ctx, http.MethodPost, path, addTicketsBody{TicketKeys: keys, Notes: notes}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// RemoveTickets detaches ticket keys from a customer. Keys the customer
// never had are ignored.
func (c *Client) RemoveTickets(ctx context.Context, name string, keys []string) (*store.Customer, error) {
	path := fmt.Sprintf("/api/customers/%s/tickets", url.PathEscape(name))

	var customer store.Customer
	if err := c.doJSON(ctx, http.MethodDelete, path, removeTicketsBody{TicketKeys: keys}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// AddComment appends a timestamped comment to one ticket of a customer.
func (c *Client) AddComment(ctx context.Context, name, ticketKey, comment string) (*store.Customer, error) {
	path := fmt.Sprintf("/api/customers/%s/tickets/%s/comments", url.PathEscape(name), url.PathEscape(ticketKey))

	var customer store.Customer
	if err := c.doJSON(ctx, http.MethodPost, path, commentBody{Comment: comment}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateNotes replaces the notes of a customer, creating the record when
// it does not exist yet. An empty string clears the notes.
func (c *Client) UpdateNotes(ctx context.Context, name, notes string) (*store.Customer, error) {
	path := fmt.Sprintf("/api/customers/%s/notes", url.PathEscape(name))

	var customer store.Customer
	if err := c.doJSON(ctx, http.MethodPut, path, notesBody{Notes: notes}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// ExportOptions control the format and destination of an export.
type ExportOptions struct {
	Format      string
	IncludeJira bool
	SaveFile    bool
}

// Export renders a customer record through the server's export engine.
func (c *Client) Export(ctx context.Context, name string, opts ExportOptions) (*export.Result, error) {
	q := url.Values{}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	q.Set("include_jira", strconv.FormatBool(opts.IncludeJira))
	q.Set("save_file", strconv.FormatBool(opts.SaveFile))

	path := fmt.Sprintf("/api/customers/%s/export?%s", url.PathEscape(name), q.Encode())

	var result export.Result
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
