// Package store persists wallp state in SQLite.
//
// It records every staged wallpaper together with its provenance trace, keeps
// the history of context references used for deduplication, stores typed
// user settings addressed as group.name, and keeps scheduled jobs durable
// across daemon restarts. All writes go through a busy-retry helper so the
// CLI and daemon can share the database file.
package store
