// Package notifications delivers wallpaper change events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event type
// is gated by its notifications toggle, so callers publish unconditionally.
package notifications
