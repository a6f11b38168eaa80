// Package jira adapts ticket keys to external issue-tracker lookups.
//
// The package deliberately has one failure mode: ErrUnavailable. An export
// that asks for enrichment must keep rendering when the tracker is down,
// slow, misconfigured or returns garbage, so Resolve never distinguishes
// those cases for its callers. Lookup time is bounded by the client's own
// HTTP timeout, not by the caller.
//
// CachedResolver can wrap any Resolver to keep resolved fields for a short
// TTL, which spares back-to-back exports of the same customer a second
// round of tracker calls.
package jira
