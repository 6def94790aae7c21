// Package notifications delivers operator-facing auto-rename events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Per-category toggles in config.toml
// suppress rename or failure notices without touching call sites.
package notifications
