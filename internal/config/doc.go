// Package config loads, normalizes, and validates board configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BOARD_JWT_SECRET and BOARD_TOKEN. The Config type centralizes every knob the
// server and CLI need so the data directory, API bind address, credentials,
// and polling cadence are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
