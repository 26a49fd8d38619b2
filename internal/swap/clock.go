package swap

import "time"

// Clock abstracts time for the confirmation tracker so polling loops are
// testable without real delay.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// realClock delegates to package time.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}
