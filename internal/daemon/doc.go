// Package daemon hosts the crabmigrated process: it owns the stores, wires
// the linking hook, serves the migration HTTP API, and enforces
// single-instance execution through a lock file.
package daemon
