// Package scheduler runs named jobs on a frequency such as "30m" or "1d".
//
// Frequencies are translated into cron expressions and driven by
// robfig/cron. Jobs are persisted through a JobStore so schedules survive a
// restart; the durable form names a registered target function plus a JSON
// argument string.
//
// Every execution, scheduled or submitted ad hoc, goes through one worker
// goroutine, so runs are serialized across the whole process. Per job id at
// most one run is active; a trigger arriving while that id is queued or
// running sets a single pending flag and the job runs once more afterwards.
// Further triggers in between are dropped and counted as coalesced.
package scheduler
