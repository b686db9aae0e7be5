// Package config loads, normalizes, and validates Lectern configuration
// data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files from ~/.config/lectern/config.toml or
// a project-local lectern.toml. The Config type centralizes every knob
// the daemon, executor, and CLI need.
//
// Always obtain settings through this package so downstream code
// receives sanitized paths, canonical log formats, and clear validation
// errors.
package config
