// Package acquire turns a change request into a staged wallpaper file.
//
// GetImage runs two nested retry loops. The outer loop picks a source (the
// pinned one, or a fresh random one per attempt) and lets it enumerate, filter
// and select a candidate. The inner loop downloads the resolved URL, retrying
// timeouts and transfer failures against the same URL. Generative sources
// skip the download and render their file directly.
//
// The file is moved into the staging directory under a fixed basename so the
// desktop always points at the same path. A staging failure is terminal and
// never leaves a partial file behind. Every success is persisted together with
// its provenance trace, which is what later runs deduplicate against.
package acquire
