// Package staging reclaims partial files left behind by interrupted downloads
// and moves. The daemon sweeps the temp and staging directories at startup.
package staging
