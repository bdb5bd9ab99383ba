// Package deps checks that external binaries used by the desktop backends are
// installed.
package deps
