// ABOUTME: Enrichment boundary for external issue-tracker lookups
// ABOUTME: Defines the Resolver contract and the single Unavailable failure mode

package jira

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is the only failure mode enrichment lookups expose.
// Network errors, auth rejections, timeouts and malformed responses all
// wrap it, so callers treat every non-success uniformly and never abort
// on a single bad lookup.
var ErrUnavailable = errors.New("enrichment unavailable")

// Fields is the live tracker metadata resolved for one ticket key.
type Fields struct {
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Assignee    string `json:"assignee"`
	LastUpdated string `json:"lastUpdated"`
}

// Resolver looks up live tracker metadata for a ticket key.
// Implementations confine failures to errors wrapping ErrUnavailable and
// bound their own lookup time; callers never set deadlines for them.
type Resolver interface {
	Resolve(ctx context.Context, key string) (*Fields, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnavailable)
}
