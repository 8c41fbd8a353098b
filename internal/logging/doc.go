// Package logging assembles structured slog loggers for the board server and
// CLI.
//
// It owns the console and JSON handlers, level parsing, and the context
// helpers that tag log lines with family, order, stage, user, and correlation
// identifiers. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
