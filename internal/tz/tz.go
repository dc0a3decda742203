// Package tz converts a restaurant's fixed UTC offset into local-day
// boundaries. Revenue reporting buckets bills by restaurant-local
// calendar day; truncating raw UTC timestamps instead would misfile
// anything closed near local midnight.
package tz

import "time"

// DayWindow returns the UTC instants bounding a window of `days` local
// calendar days, ending with the local day that contains nowUTC.
// The window is half-open: [startUTC, endUTC).
//
// The local wall-clock is derived by shifting nowUTC by offsetMinutes
// (which may be negative), truncating to local midnight, and shifting
// back.
func DayWindow(nowUTC time.Time, offsetMinutes, days int) (startUTC, endUTC time.Time) {
	if days < 1 {
		days = 1
	}
	off := time.Duration(offsetMinutes) * time.Minute

	local := nowUTC.UTC().Add(off)
	y, m, d := local.Date()
	// time.UTC here is a neutral carrier for local wall-clock values.
	nextLocalMidnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	startLocal := nextLocalMidnight.AddDate(0, 0, -days)

	return startLocal.Add(-off), nextLocalMidnight.Add(-off)
}

// LocalDateString formats a UTC instant as the YYYY-MM-DD calendar date
// it falls on in the restaurant's local wall-clock.
func LocalDateString(instantUTC time.Time, offsetMinutes int) string {
	off := time.Duration(offsetMinutes) * time.Minute
	return instantUTC.UTC().Add(off).Format("2006-01-02")
}
