// Package board defines the order workflow domain: stages, assignments,
// history entries, patches, filters, and the error taxonomy shared by every
// layer from persistence to the HTTP client.
//
// Stages are family scoped and totally ordered by Position. Each tracked order
// has exactly one Assignment pointing at a stage of the same family. Every
// accepted stage change appends one immutable HistoryEntry.
//
// Errors wrap the sentinels declared in errors.go so callers can use
// errors.Is regardless of which layer produced them; KindOf maps an error to
// the stable string used on the wire.
package board
