// ABOUTME: File-backed Store implementation keeping one JSON document per customer
// ABOUTME: Serializes same-customer mutations with per-record locks and atomic file replacement

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore persists each customer as a pretty-printed JSON document under a
// single directory. Mutations on the same customer are serialized by a
// per-record lock; mutations on different customers run concurrently.
type FileStore struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates (if needed) the storage directory and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}

	logger.Info("file store initialized", "dir", dir)
	return s, nil
}

// Dir returns the storage directory the store was rooted at.
func (s *FileStore) Dir() string {
	return s.dir
}

// SanitizeName maps a customer name to a filename-safe form: spaces and
// path separators collapse to underscores. The display name lives inside
// the document, so the mapping only has to be stable, not reversible.
func SanitizeName(name string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(name)
}

func (s *FileStore) recordPath(name string) string {
	return filepath.Join(s.dir, SanitizeName(name)+".json")
}

// lockFor returns the mutex guarding a customer's document, creating it on
// first use. Keyed by the sanitized filename so two display names mapping
// to the same file share one lock.
func (s *FileStore) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SanitizeName(name)
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// loadPath reads and decodes one customer document. Decode failures are
// storage faults, not ErrNotFound: a record that exists but cannot be read
// must surface, never masquerade as an empty customer.
func (s *FileStore) loadPath(path string) (*Customer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading customer record: %w", err)
	}

	var c Customer
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding customer record %s: %w", filepath.Base(path), err)
	}

	if c.Tickets == nil {
		c.Tickets = []Ticket{}
	}
	for i := range c.Tickets {
		if c.Tickets[i].Comments == nil {
			c.Tickets[i].Comments = []Comment{}
		}
	}
	return &c, nil
}

// loadCustomer loads the document for a customer name, mapping a missing
// file to ErrNotFound.
func (s *FileStore) loadCustomer(name string) (*Customer, error) {
	path := s.recordPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("customer %q: %w", name, ErrNotFound)
	}
	return s.loadPath(path)
}

// saveCustomer writes a document atomically: the new content lands in a
// temp file in the same directory, is synced, then renamed over the old
// document. A crash mid-write leaves the previous version intact.
func (s *FileStore) saveCustomer(c *Customer) error {
	if c.Tickets == nil {
		c.Tickets = []Ticket{}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding customer record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp record: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting record permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.recordPath(c.Name)); err != nil {
		return fmt.Errorf("replacing customer record: %w", err)
	}
	return nil
}

// mutate runs fn against the current durable record under the customer's
// exclusive lock, then persists the result if fn reports a change. fn
// receives nil when no record exists yet. Mutations that change nothing
// leave the document (including its lastModified) untouched.
func (s *FileStore) mutate(name string, fn func(c *Customer) (*Customer, bool, error)) (*Customer, error) {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.loadCustomer(name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	upd, changed, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if !changed {
		return upd, nil
	}

	upd.LastModified = s.now().UTC()
	if err := s.saveCustomer(upd); err != nil {
		return nil, err
	}
	return upd, nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("customer name: %w", ErrInvalidInput)
	}
	return nil
}

// ListCustomers returns a summary for every record in the storage
// directory, sorted by customer name. A record that cannot be read fails
// the whole listing rather than being skipped.
func (s *FileStore) ListCustomers(ctx context.Context) ([]CustomerSummary, error) {
	summaries := []CustomerSummary{}
	err := s.forEachRecord(func(c *Customer) error {
		summaries = append(summaries, CustomerSummary{
			Name:         c.Name,
			TicketCount:  len(c.Tickets),
			LastModified: c.LastModified,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// GetCustomer returns the full record for name. Reads take no lock: the
// atomic rename on write means a reader only ever sees a fully written
// version.
func (s *FileStore) GetCustomer(ctx context.Context, name string) (*Customer, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return s.loadCustomer(name)
}

// AddTickets adds each key not already tracked under the customer, creating
// the customer on first contact. Existing tickets keep their added date and
// comments. Duplicate keys within one batch collapse to a single insertion.
func (s *FileStore) AddTickets(ctx context.Context, name string, keys []string, notes *string) (*Customer, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("ticket keys: %w", ErrInvalidInput)
	}
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("blank ticket key: %w", ErrInvalidInput)
		}
	}

	return s.mutate(name, func(c *Customer) (*Customer, bool, error) {
		if c == nil {
			c = &Customer{Name: name, Tickets: []Ticket{}}
		}

		added := 0
		for _, key := range keys {
			if c.Ticket(key) != nil {
				continue
			}
			c.Tickets = append(c.Tickets, Ticket{
				Key:       key,
				AddedDate: s.now().UTC(),
				Comments:  []Comment{},
			})
			added++
		}
		if notes != nil {
			c.Notes = *notes
		}

		if added > 0 {
			s.logger.Debug("added tickets", "customer", name, "added", added, "requested", len(keys))
		}
		return c, added > 0 || notes != nil, nil
	})
}

// RemoveTickets drops the listed tickets and their comments. Keys not
// present are ignored; if nothing matches, the record is left untouched.
func (s *FileStore) RemoveTickets(ctx context.Context, name string, keys []string) (*Customer, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	return s.mutate(name, func(c *Customer) (*Customer, bool, error) {
		if c == nil {
			return nil, false, fmt.Errorf("customer %q: %w", name, ErrNotFound)
		}

		drop := make(map[string]bool, len(keys))
		for _, k := range keys {
			drop[k] = true
		}

		kept := c.Tickets[:0]
		for _, t := range c.Tickets {
			if !drop[t.Key] {
				kept = append(kept, t)
			}
		}
		removed := len(c.Tickets) - len(kept)
		c.Tickets = kept

		if removed > 0 {
			s.logger.Debug("removed tickets", "customer", name, "removed", removed)
		}
		return c, removed > 0, nil
	})
}

// AddComment appends a timestamped comment to the named ticket.
func (s *FileStore) AddComment(ctx context.Context, name, ticketKey, body string) (*Customer, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("comment body: %w", ErrInvalidInput)
	}

	return s.mutate(name, func(c *Customer) (*Customer, bool, error) {
		if c == nil {
			return nil, false, fmt.Errorf("customer %q: %w", name, ErrNotFound)
		}
		t := c.Ticket(ticketKey)
		if t == nil {
			return nil, false, fmt.Errorf("ticket %q under customer %q: %w", ticketKey, name, ErrNotFound)
		}

		t.Comments = append(t.Comments, Comment{Body: body, CreatedAt: s.now().UTC()})
		return c, true, nil
	})
}

// UpdateNotes replaces the customer's notes, creating the customer if it
// does not exist yet.
func (s *FileStore) UpdateNotes(ctx context.Context, name, notes string) (*Customer, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	return s.mutate(name, func(c *Customer) (*Customer, bool, error) {
		if c == nil {
			c = &Customer{Name: name, Tickets: []Ticket{}}
		}
		c.Notes = notes
		return c, true, nil
	})
}

// Stats scans every record and totals customers, tickets and comments.
func (s *FileStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{GeneratedAt: s.now().UTC()}
	err := s.forEachRecord(func(c *Customer) error {
		stats.Customers++
		stats.Tickets += len(c.Tickets)
		stats.Comments += c.CommentCount()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// forEachRecord loads every customer document in the storage directory in
// filename order and hands it to fn.
func (s *FileStore) forEachRecord(fn func(c *Customer) error) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading storage directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		c, err := s.loadPath(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
