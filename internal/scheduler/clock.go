package scheduler

import "time"

// Clock abstracts time for the polling loop so tests can drive many ticks
// without real waiting.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Compile-time interface compliance check.
var _ Clock = (*systemClock)(nil)

type systemClock struct{}

// NewSystemClock returns the wall-clock implementation used in production.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
