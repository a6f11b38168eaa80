// ABOUTME: Mutation journal recording every successful record change to SQLite
// ABOUTME: Append-only trail with newest-first queries for the audit API

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// JournalAction identifies the kind of mutation recorded in the journal.
type JournalAction string

const (
	JournalAddTickets    JournalAction = "add_tickets"
	JournalRemoveTickets JournalAction = "remove_tickets"
	JournalAddComment    JournalAction = "add_comment"
	JournalUpdateNotes   JournalAction = "update_notes"
)

// JournalEntry is one recorded mutation.
type JournalEntry struct {
	ID        string        `json:"id"`
	Action    JournalAction `json:"action"`
	Customer  string        `json:"customer"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Journal is an append-only mutation trail backed by SQLite. It is an
// observability aid, never a source of truth: callers record entries
// best-effort after a mutation has already been persisted.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJournal opens the journal database at path, creating the file, its
// parent directory and the schema as needed.
func NewJournal(path string) (*Journal, error) {
	logger := slog.Default().With("component", "journal")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	// WAL keeps readers off the writer's back
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS journal (
			id       TEXT PRIMARY KEY,
			action   TEXT NOT NULL,
			customer TEXT NOT NULL,
			detail   TEXT,
			ts       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_journal_ts ON journal(ts);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	logger.Info("mutation journal initialized", "path", path)
	return &Journal{db: db, logger: logger}, nil
}

// Record appends one entry. ID and Timestamp are filled when unset.
func (j *Journal) Record(ctx context.Context, e *JournalEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detail any
	if e.Detail != "" {
		detail = e.Detail
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO journal (id, action, customer, detail, ts) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.Customer, detail,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	j.logger.Debug("recorded mutation", "action", e.Action, "customer", e.Customer)
	return nil
}

// Recent returns the newest entries, most recent first. A non-positive
// limit defaults to 50; limits above 500 are capped.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, action, customer, detail, ts FROM journal ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []JournalEntry{}
	for rows.Next() {
		var (
			e      JournalEntry
			action string
			detail sql.NullString
			ts     string
		)
		if err := rows.Scan(&e.ID, &action, &e.Customer, &detail, &ts); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		e.Action = JournalAction(action)
		e.Detail = detail.String
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}
	return entries, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
