// Package clock abstracts wall-clock time and blocking waits so that the
// scheduler's throttling can be driven deterministically in tests.
//
// Real delegates to the time package. Fake keeps its own notion of "now"
// and advances it instantly whenever a caller sleeps, recording every
// requested sleep for later inspection.
package clock
