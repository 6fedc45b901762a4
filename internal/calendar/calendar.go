// Package calendar classifies dates as trading days and resolves invalid
// dates (weekends, market holidays) to the nearest valid trading day.
package calendar

import (
	"fmt"
	"time"
)

// IsWeekend reports whether date falls on a Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsTradingHoliday reports whether date is a NYSE market closure.
func IsTradingHoliday(date time.Time) bool {
	y, m, d := date.Date()
	for _, h := range holidaysForYear(y) {
		hy, hm, hd := h.Date()
		if hy == y && hm == m && hd == d {
			return true
		}
	}
	return false
}

// ResolveValidDate walks date one day at a time in the given direction
// (+1 forward, -1 backward) until it lands on a trading day. A valid input
// date is returned unchanged.
func ResolveValidDate(date time.Time, direction int) (time.Time, error) {
	if direction != 1 && direction != -1 {
		return time.Time{}, fmt.Errorf("calendar.ResolveValidDate: direction must be +1 or -1, got %d", direction)
	}
	for IsWeekend(date) || IsTradingHoliday(date) {
		date = date.AddDate(0, 0, direction)
	}
	return date, nil
}

// holidaysForYear computes the NYSE closure dates for a year. Fixed-date
// holidays are shifted to the nearest weekday when observed (Sat -> Fri,
// Sun -> Mon).
func holidaysForYear(year int) []time.Time {
	hs := []time.Time{
		observed(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),    // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),                      // MLK Day
		nthWeekday(year, time.February, time.Monday, 3),                     // Washington's Birthday
		goodFriday(year),                                                    //
		lastWeekday(year, time.May, time.Monday),                            // Memorial Day
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),       // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),                    // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4),                   // Thanksgiving
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)),  // Christmas
	}
	if year >= 2022 {
		hs = append(hs, observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC))) // Juneteenth
	}
	return hs
}

func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the nth occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

// lastWeekday returns the last occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// goodFriday is two days before Easter Sunday (Anonymous Gregorian algorithm).
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}
