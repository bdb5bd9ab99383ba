// Package daemon coordinates the long-running wallp process.
//
// It wires configuration, the history store, the scheduler and the change
// flow into a single lifecycle with flock-based locking to prevent multiple
// instances. On start it sweeps stale partial downloads, logs preflight
// results and installs the default wallpaper schedule. Manual changes are
// submitted to the same scheduler worker as timed ones, so every change is
// serialized and coalesced per job id.
//
// Keep orchestration here. Acquisition, desktop integration and progress
// reporting live in their own packages; the daemon only decides when they run.
package daemon
