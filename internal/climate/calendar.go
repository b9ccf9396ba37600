package climate

import "time"

// DaysPerYear is the length of the normalized day-of-year scale.
const DaysPerYear = 365

// DayOfYear is a position in the year on a 1..365 scale, independent of
// the absolute year.
type DayOfYear int

// RawDayOfYear returns the number of whole days since Dec 31 of the previous
// year, taken on the UTC calendar. Jan 1 is 1 and Dec 31 of a leap year is 366.
func RawDayOfYear(t time.Time) int {
	return t.UTC().YearDay()
}

// DayOfYearOf converts a date to the 1..365 scale. Dec 31 of a leap year
// (raw day 366) is folded onto 365.
func DayOfYearOf(t time.Time) DayOfYear {
	d, _ := FromRaw(RawDayOfYear(t))
	return d
}

// FromRaw converts a raw 1..366 day-of-year, folding 366 onto 365. It reports
// false for values outside 1..366.
func FromRaw(raw int) (DayOfYear, bool) {
	if raw == DaysPerYear+1 {
		return DaysPerYear, true
	}
	if d := DayOfYear(raw); d.Valid() {
		return d, true
	}
	return 0, false
}

// Wrap maps n onto 1..365, so that 0 is 365, -1 is 364 and 366 is 1.
// Values further out wrap as many times as needed.
func Wrap(n int) DayOfYear {
	m := (n - 1) % DaysPerYear
	if m < 0 {
		m += DaysPerYear
	}
	return DayOfYear(m + 1)
}

// Add returns the wrapped day offset days away from d.
func (d DayOfYear) Add(offset int) DayOfYear {
	return Wrap(int(d) + offset)
}

// Valid reports whether d lies on the 1..365 scale.
func (d DayOfYear) Valid() bool {
	return d >= 1 && d <= DaysPerYear
}
