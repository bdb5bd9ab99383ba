// Package desktop applies a staged image as the desktop background.
//
// Backends shell out to gsettings, feh, or an operator-supplied command. The
// "none" backend accepts every request so headless daemons and tests can run
// the full change flow. All failures wrap ErrDesktop; callers treat them as
// best effort.
package desktop
