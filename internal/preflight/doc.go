// Package preflight provides readiness checks for the filesystem paths and
// remote endpoints wallp depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check.
//   - The CLI "wallp status" command renders the same results, plus the
//     desktop backend binaries from CheckSystemDeps.
//
// Source endpoints are only checked for enabled sources. The acquisition
// pipeline calls CheckFreeSpace directly before staging.
package preflight
