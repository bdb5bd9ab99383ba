// Package imageinfo reads the format and pixel dimensions of a staged image
// without decoding its pixels.
package imageinfo
