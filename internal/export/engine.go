// ABOUTME: Deterministic report rendering for customer records
// ABOUTME: Builds markdown or HTML documents with optional enrichment columns and persists them

package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/sync/errgroup"

	"github.com/2389/casebook/internal/jira"
	"github.com/2389/casebook/internal/store"
)

// htmlConverter turns report markdown into HTML. The table extension is
// required; ticket listings are pipe tables.
var htmlConverter = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Formats a report can be rendered to.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// unavailableMarker fills the enrichment cells of a row whose lookup failed.
const unavailableMarker = "unavailable"

// enrichmentConcurrency caps parallel tracker lookups per export.
const enrichmentConcurrency = 4

// Options select how a record is rendered and whether the document is
// written to disk.
type Options struct {
	Format            string
	IncludeEnrichment bool
	Persist           bool
}

// Result is the outcome of one export.
type Result struct {
	Customer string `json:"customer"`
	Format   string `json:"format"`
	Content  string `json:"content"`
	Location string `json:"location,omitempty"`
}

// RecordSource is the slice of the store the engine reads. The store stays
// authoritative; an exported document is only a projection.
type RecordSource interface {
	GetCustomer(ctx context.Context, name string) (*store.Customer, error)
}

// Engine renders customer records into reports.
type Engine struct {
	source   RecordSource
	resolver jira.Resolver
	dir      string
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates an engine reading from source, enriching through
// resolver and persisting documents under dir.
func NewEngine(source RecordSource, resolver jira.Resolver, dir string) *Engine {
	return &Engine{
		source:   source,
		resolver: resolver,
		dir:      dir,
		logger:   slog.Default().With("component", "export"),
		now:      time.Now,
	}
}

// Export loads the record for name and renders it per opts.
func (e *Engine) Export(ctx context.Context, name string, opts Options) (*Result, error) {
	format := opts.Format
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, fmt.Errorf("unknown export format %q: %w", format, store.ErrInvalidInput)
	}

	c, err := e.source.GetCustomer(ctx, name)
	if err != nil {
		return nil, err
	}

	var enrichment map[string]*jira.Fields
	if opts.IncludeEnrichment {
		enrichment = e.resolveAll(ctx, c)
	}

	content := renderMarkdown(c, opts.IncludeEnrichment, enrichment)
	if format == FormatHTML {
		var buf bytes.Buffer
		if err := htmlConverter.Convert([]byte(content), &buf); err != nil {
			return nil, fmt.Errorf("converting report to html: %w", err)
		}
		content, err = renderHTMLDocument(c.Name, buf.String())
		if err != nil {
			return nil, err
		}
	}

	res := &Result{Customer: c.Name, Format: format, Content: content}

	if opts.Persist {
		location, err := e.persist(c.Name, format, content)
		if err != nil {
			return nil, err
		}
		res.Location = location
	}
	return res, nil
}

// resolveAll looks up enrichment for every ticket with bounded parallelism.
// A failed lookup leaves its key out of the map; that row renders the
// unavailable marker. One bad lookup never aborts the export.
func (e *Engine) resolveAll(ctx context.Context, c *store.Customer) map[string]*jira.Fields {
	fields := make(map[string]*jira.Fields, len(c.Tickets))
	if e.resolver == nil {
		return fields
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichmentConcurrency)

	for _, t := range c.Tickets {
		key := t.Key
		g.Go(func() error {
			f, err := e.resolver.Resolve(gctx, key)
			if err != nil {
				e.logger.Debug("enrichment unavailable", "key", key, "error", err)
				return nil
			}
			mu.Lock()
			fields[key] = f
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers swallow lookup failures, so no error surfaces
	return fields
}

// renderMarkdown builds the report document. Rendering is pure: the same
// record and enrichment results produce byte-identical output.
func renderMarkdown(c *store.Customer, enriched bool, fields map[string]*jira.Fields) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Customer Report: %s\n\n", c.Name)
	fmt.Fprintf(&b, "- **Last modified:** %s\n", c.LastModified.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Tickets:** %d\n", len(c.Tickets))
	fmt.Fprintf(&b, "- **Comments:** %d\n", c.CommentCount())

	if c.Notes != "" {
		b.WriteString("\n## Notes\n\n")
		b.WriteString(c.Notes)
		b.WriteString("\n")
	}

	b.WriteString("\n## Tickets\n\n")
	switch {
	case len(c.Tickets) == 0:
		b.WriteString("No tickets tracked.\n")
	case enriched:
		b.WriteString("| Key | Added | Comments | Status | Priority | Assignee | Updated |\n")
		b.WriteString("|-----|-------|----------|--------|----------|----------|---------|\n")
		for _, t := range c.Tickets {
			status, priority, assignee, updated := enrichmentCells(fields[t.Key])
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s |\n",
				t.Key, t.AddedDate.UTC().Format("2006-01-02"), len(t.Comments),
				status, priority, assignee, updated)
		}
	default:
		b.WriteString("| Key | Added | Comments |\n")
		b.WriteString("|-----|-------|----------|\n")
		for _, t := range c.Tickets {
			fmt.Fprintf(&b, "| %s | %s | %d |\n",
				t.Key, t.AddedDate.UTC().Format("2006-01-02"), len(t.Comments))
		}
	}

	if c.CommentCount() > 0 {
		b.WriteString("\n## Comments\n")
		for _, t := range c.Tickets {
			if len(t.Comments) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n### %s\n\n", t.Key)
			for _, cm := range t.Comments {
				fmt.Fprintf(&b, "- %s: %s\n", cm.CreatedAt.UTC().Format(time.RFC3339), cm.Body)
			}
		}
	}

	return b.String()
}

// enrichmentCells renders the four enrichment columns for one row. A nil
// fields means the lookup failed; every cell then carries the marker.
func enrichmentCells(f *jira.Fields) (status, priority, assignee, updated string) {
	if f == nil {
		return unavailableMarker, unavailableMarker, unavailableMarker, unavailableMarker
	}
	return cell(f.Status), cell(f.Priority), cell(f.Assignee), cell(f.LastUpdated)
}

// cell keeps table geometry intact for fields the tracker left empty.
func cell(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// persist writes the document under the export directory, named after the
// sanitized customer name and the current second. Collisions within one
// second overwrite; exports carry no de-duplication guarantee.
func (e *Engine) persist(name, format, content string) (string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	ext := ".md"
	if format == FormatHTML {
		ext = ".html"
	}
	filename := fmt.Sprintf("%s_export_%s%s",
		store.SanitizeName(name), e.now().UTC().Format("20060102_150405"), ext)
	path := filepath.Join(e.dir, filename)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}

	e.logger.Info("export written", "customer", name, "path", path)
	return path, nil
}
