// Package config loads, normalizes, and validates splicer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SPLICER_NTFY_TOPIC environment
// fallback. The Config type centralizes every knob the daemon and CLI need:
// section constants, trigger selection, the output target, and log routing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical trigger modes, and clear validation errors.
package config
