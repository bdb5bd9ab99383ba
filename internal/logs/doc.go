// Package logs reads the daemon log file for `wallp logs`.
//
// Tail returns the last N lines or everything after a byte offset, and in
// follow mode polls until new lines arrive or the wait expires. The returned
// offset is fed back into the next call, so the CLI and the IPC server can
// stream a growing file with bounded memory.
package logs
