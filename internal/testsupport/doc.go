// Package testsupport provides shared fixtures for wallp tests: isolated
// configs, opened stores, stub binaries, and small image files.
package testsupport
