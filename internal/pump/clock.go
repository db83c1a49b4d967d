package pump

import "time"

// Clock supplies the current time and absolute-deadline timers.
type Clock interface {
	Now() time.Time
	// Until returns a channel that receives once the clock reaches
	// deadline, and a function that releases the timer early.
	Until(deadline time.Time) (<-chan time.Time, func() bool)
}

// SystemClock is the Clock backed by the runtime's monotonic timers.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Until(deadline time.Time) (<-chan time.Time, func() bool) {
	t := time.NewTimer(time.Until(deadline))
	return t.C, t.Stop
}
