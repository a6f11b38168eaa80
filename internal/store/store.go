// ABOUTME: Data model and Store interface for customer ticket records
// ABOUTME: Defines Customer, Ticket, Comment structs and the sentinel errors store operations return

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested customer or ticket does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned for empty or malformed operation arguments
var ErrInvalidInput = errors.New("invalid input")

// Comment is a single annotation on a ticket. Comments are append-only:
// they are never edited or reordered, and disappear only when the owning
// ticket is removed.
type Comment struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ticket is an issue-tracker item tracked under a customer. The key is
// unique within its customer; the same key may appear under different
// customers independently.
type Ticket struct {
	Key       string    `json:"key"`
	AddedDate time.Time `json:"addedDate"`
	Comments  []Comment `json:"comments"`
}

// Customer is the durable unit of the store: one record per case-sensitive
// customer name, holding free-text notes and an ordered set of tickets.
// LastModified moves on every mutation touching the customer or any of its
// tickets or comments.
type Customer struct {
	Name         string    `json:"name"`
	Notes        string    `json:"notes,omitempty"`
	Tickets      []Ticket  `json:"tickets"`
	LastModified time.Time `json:"lastModified"`
}

// Ticket returns the ticket with the given key, or nil if the customer does
// not track it.
func (c *Customer) Ticket(key string) *Ticket {
	for i := range c.Tickets {
		if c.Tickets[i].Key == key {
			return &c.Tickets[i]
		}
	}
	return nil
}

// CommentCount totals the comments across every ticket.
func (c *Customer) CommentCount() int {
	n := 0
	for i := range c.Tickets {
		n += len(c.Tickets[i].Comments)
	}
	return n
}

// CustomerSummary is one row of a customer listing.
type CustomerSummary struct {
	Name         string    `json:"name"`
	TicketCount  int       `json:"ticketCount"`
	LastModified time.Time `json:"lastModified"`
}

// Stats aggregates totals across every customer record.
type Stats struct {
	Customers   int       `json:"customers"`
	Tickets     int       `json:"tickets"`
	Comments    int       `json:"comments"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Store defines the operations a record store provides. Mutating operations
// return the updated record so callers never need a follow-up read.
type Store interface {
	// ListCustomers returns a summary for every known customer, sorted by
	// name ascending.
	ListCustomers(ctx context.Context) ([]CustomerSummary, error)

	// GetCustomer returns the full record, or ErrNotFound if the customer
	// has never been created.
	GetCustomer(ctx context.Context, name string) (*Customer, error)

	// AddTickets adds each key not already present, in the given order,
	// creating the customer if needed. Present keys keep their added date
	// and comments. A non-nil notes replaces the customer's notes.
	// ErrInvalidInput if keys is empty or contains a blank key.
	AddTickets(ctx context.Context, name string, keys []string, notes *string) (*Customer, error)

	// RemoveTickets removes the listed tickets and their comments. Keys not
	// present are ignored. ErrNotFound if the customer does not exist.
	RemoveTickets(ctx context.Context, name string, keys []string) (*Customer, error)

	// AddComment appends a timestamped comment to the named ticket.
	// ErrNotFound if the customer or ticket is absent, ErrInvalidInput if
	// the body is empty.
	AddComment(ctx context.Context, name, ticketKey, body string) (*Customer, error)

	// UpdateNotes replaces the customer's notes, creating the customer if
	// absent.
	UpdateNotes(ctx context.Context, name, notes string) (*Customer, error)

	// Stats scans every record and returns aggregate totals.
	Stats(ctx context.Context) (*Stats, error)
}
