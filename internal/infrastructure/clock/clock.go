package clock

import "time"

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// New returns the system clock.
func New() SystemClock { return SystemClock{} }

// Now returns the current UTC instant.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
