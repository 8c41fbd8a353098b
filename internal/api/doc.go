// Package api defines the wire format of the board HTTP API and a client for
// it.
//
// # Key Types
//
// Stage, Assignment, Board, HistoryEntry, Stats: transport representations of
// the board domain with camelCase JSON tags. Timestamps use RFC3339 with
// milliseconds. Priority travels as its numeric tier.
//
// AssignmentPatch, BulkUpdateRequest: partial updates. Absent JSON fields are
// nil pointers and leave the stored value alone.
//
// ErrorResponse: the body of every non-2xx response, carrying a stable kind
// that Client maps back onto the board sentinel errors.
//
// # Client
//
// Client speaks the API over an HTTPDoer with a bearer token. Transport
// failures and 5xx responses surface as board.ErrNetworkFailure; other
// failures carry the sentinel named by the response kind.
package api
