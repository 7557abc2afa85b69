package model

import "time"

// DateFormat is the storage and wire format for civil dates.
const DateFormat = "2006-01-02"

// Day truncates t to a UTC civil day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC civil day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.UTC)
}

// DaysBetween returns the absolute number of whole days between a and b.
func DaysBetween(a, b time.Time) int {
	d := int(Day(a).Sub(Day(b)) / (24 * time.Hour))
	if d < 0 {
		return -d
	}
	return d
}
