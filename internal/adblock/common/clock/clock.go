package clock

import "time"

// Clock is the time source for rule ingestion timestamps and filter-list
// cache staleness.
type Clock interface {
	Now() time.Time
}

// Age returns how long ago t was according to c. Times in the future count
// as age zero, so a cache file stamped ahead of the clock stays fresh.
func Age(c Clock, t time.Time) time.Duration {
	if d := c.Now().Sub(t); d > 0 {
		return d
	}
	return 0
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock only moves when Advance is called. Not safe for concurrent use.
type MockClock struct {
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

// Advance moves the clock forward by d; a negative d moves it back.
func (c *MockClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
