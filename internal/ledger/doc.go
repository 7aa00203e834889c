// Package ledger persists per-asset migration state in SQLite. Each entry
// tracks one original attachment through the pending, completed, and failed
// lifecycle and records the id of the optimized asset that replaced it.
package ledger
