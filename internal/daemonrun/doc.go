// Package daemonrun assembles the daemon process: logger, pid file, store,
// sources, acquisition pipeline, desktop backend, scheduler and the IPC
// server. Both `wallp daemon` and the wallpd binary call Run.
package daemonrun
