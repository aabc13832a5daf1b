package markethours

import "time"

// Days on which the interbank forex market is shut (UTC calendar dates).
var forexHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.December, 25}, // Christmas
}

// IsForexHoliday reports whether t's UTC date is a forex market holiday.
func IsForexHoliday(t time.Time) bool {
	u := t.UTC()
	for _, h := range forexHolidays {
		if u.Month() == h.month && u.Day() == h.day {
			return true
		}
	}
	return false
}
