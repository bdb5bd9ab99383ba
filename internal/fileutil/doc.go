// Package fileutil moves and copies files without exposing partial writes.
package fileutil
