// Package system provides the wall-clock connector.Clock.
package system

import "time"

// Clock returns UTC wall-clock time.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
