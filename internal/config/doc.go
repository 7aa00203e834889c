// Package config loads, normalizes, and validates CrabMigrate configuration
// from TOML files.
package config
