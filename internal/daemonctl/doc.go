// Package daemonctl launches, stops and inspects the wallp daemon from the
// CLI side. It talks to the daemon over ipc and falls back to the on-disk
// store and pid file when the daemon is unreachable.
package daemonctl
