package adapter

import "time"

// Clock supplies the current time. Auction expiry, protection windows and
// the sweep interval all flow through it, so tests can pin time exactly.
//
//go:generate mockgen -source=clock.go -destination=../mocks/clock.go -package=mocks -mock_names=Clock=MockClock
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	After(d time.Duration) <-chan time.Time
}

// NewClock returns the wall clock.
func NewClock() Clock {
	return &RealClock{}
}

// RealClock implements Clock with the time package.
type RealClock struct{}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
