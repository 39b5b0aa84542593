// Package clock lets the publisher's tick loop be driven by real time in
// production and by a manually advanced clock in tests.
package clock

import "time"

// Clock is the subset of the time package the tick loop depends on: it
// stamps each tick with Now and waits out the interval with After.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If d <= 0
	// the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
