// Package store persists the order workflow board in SQLite.
//
// The Store owns the database handle, schema initialization, busy retry, and
// health diagnostics. Reads run directly on the Store; writes that must be
// atomic run inside WithTx, whose Tx exposes the same query set bound to the
// transaction. Domain rules (family ownership, no-op moves, position
// validation) live in the service packages; this package only enforces what
// the schema can: unique positions per family, one assignment per order,
// stage references, and an append-only history table.
//
// Schema changes bump schemaVersion in schema.go; users clear the database to
// adopt the new schema.
package store
