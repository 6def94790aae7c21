// Package config loads, normalizes, and validates frcvideos configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TBA_API_KEY. The Config type centralizes every knob the daemon and CLI need,
// from the recording directory to the auto-rename thresholds that seed the
// settings table.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
