// Package daemon runs the long-lived board server.
//
// It wires configuration, the SQLite store, and the workflow services behind
// a chi router, and owns the process lifecycle: a flock-based lock on the data
// directory prevents a second instance, and the HTTP server is run under an
// errgroup that shuts it down gracefully when the context ends.
//
// Keep request parsing and response shaping here: board semantics belong to
// the stages, assignments, transition, and batch packages.
package daemon
