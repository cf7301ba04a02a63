// Package biztime provides time helpers for the control plane.
// All storage and transport use UTC; usage accounting is bucketed on UTC
// hour boundaries.
package biztime

import "time"

// Location returns the business timezone. The panel runs everything in
// UTC; scheduling and bucketing share this location.
func Location() *time.Location {
	return time.UTC
}

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// HourBucket truncates t to its UTC hour boundary.
func HourBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// CurrentHourBucket returns the current UTC hour boundary.
func CurrentHourBucket() time.Time {
	return HourBucket(NowUTC())
}

// StartOfDayUTC returns the UTC midnight of t's day.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
