// Package preflight provides readiness checks for the filesystem paths and
// network settings the board daemon depends on.
//
// "boardd check" runs RunAll and prints each result before inspecting the
// database. Failures are reported, not fatal; the daemon itself surfaces the
// same problems on startup.
package preflight
