// Package retry provides the bounded retry loop shared by the acquisition
// pipeline's outer source loop and its inner transfer loop.
//
// An operation reports one of three outcomes per attempt: Succeeded stops the
// loop, Retry consumes an attempt and tries again, FailFast stops without
// using the remaining attempts. Running out of attempts returns the caller's
// terminal error joined with the cause of the last attempt.
package retry
