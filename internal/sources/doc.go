// Package sources defines the pluggable image sources wallp can draw from and
// the registry that hands them to the acquisition pipeline.
//
// A source declares one of two capabilities. Resolvable sources enumerate
// candidates (for example by scraping an archive page), drop the ones already
// delivered, select one and resolve it to a URL the pipeline downloads.
// Generative sources render the image themselves and report its extension,
// so the pipeline skips the download step entirely.
//
// ImageSet implements the shared dedup and selection protocol: a persisted
// history filter, an in-batch filter on context references, optional query
// filters, then either the first survivor or a source-provided selector.
package sources
