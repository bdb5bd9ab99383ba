// Package main hosts the wallp CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the daemon: immediate changes with live progress, schedule
// management, history and source listings, log tailing, and configuration
// scaffolding. Commands that only need local state (config, settings) work
// without a running daemon.
package main
