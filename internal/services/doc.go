// Package services defines shared error markers and context helpers consumed
// by the acquisition pipeline, the scheduler, and the daemon.
//
// Context helpers stamp job IDs, source names, and correlation identifiers so
// log lines can be tied back to a single change run. The sentinel markers plus
// Wrap give every failure a stable classification that callers inspect with
// errors.Is to decide between retrying and failing fast.
package services
