// Package export renders a customer's full record into a formatted report.
//
// The document layout is fixed: a header with name and totals, an optional
// notes section, a ticket table (widened by four enrichment columns when
// live tracker data is requested) and a per-ticket comments section in
// insertion order. Rendering is deliberately pure so the same record and
// the same enrichment results always produce the same bytes; only the
// persisted filename embeds the current time.
//
// Enrichment lookups run in parallel with a small cap and failures degrade
// to an "unavailable" marker per row instead of failing the export.
package export
