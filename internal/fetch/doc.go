// Package fetch is the HTTP client shared by image sources and the download
// step of the acquisition pipeline.
//
// Every request carries the configured User-Agent, waits on a token-bucket
// limiter so scraping stays polite, and is bounded by the configured timeout.
// Failures are classified as ErrTimeout or ErrTransfer so the pipeline's
// transfer retry can tell transient errors from permanent ones.
package fetch
