// Package textutil normalizes scraped text and trims it for display.
//
// Source pages hand back titles and captions with mixed Unicode forms, stray
// whitespace and HTML-escaped punctuation; NormalizeText folds those into a
// single NFC line. Truncate fits them into table columns.
package textutil
