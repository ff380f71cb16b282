package service

import "time"

// RealClock returns the wall clock in Loc (local time when nil).
type RealClock struct {
	Loc *time.Location
}

func (c RealClock) Now() time.Time {
	now := time.Now()
	if c.Loc != nil {
		return now.In(c.Loc)
	}
	return now
}
