// Package config loads, normalizes, and validates wallp configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// WALLP_PICTURES_DIR and WALLP_NTFY_TOPIC. The Config type centralizes every
// knob the daemon and CLI need so the pictures, data, and temp directories are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
