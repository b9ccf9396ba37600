package climate

import (
	"testing"
	"time"
)

func TestRawDayOfYear(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want int
	}{
		{"jan 1", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 1},
		{"dec 31 common year", time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC), 365},
		{"dec 31 leap year", time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), 366},
		{"mar 1 leap year", time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), 61},
		{"late in the utc day", time.Date(2021, 2, 1, 23, 59, 59, 0, time.UTC), 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RawDayOfYear(tt.date); got != tt.want {
				t.Errorf("RawDayOfYear(%v) = %d, want %d", tt.date, got, tt.want)
			}
		})
	}
}

func TestRawDayOfYear_UsesUTCCalendar(t *testing.T) {
	kiritimati := time.FixedZone("LINT", 14*60*60)
	// 2021-01-01 05:00 local is still 2020-12-31 in UTC.
	local := time.Date(2021, 1, 1, 5, 0, 0, 0, kiritimati)
	if got := RawDayOfYear(local); got != 366 {
		t.Errorf("RawDayOfYear(%v) = %d, want 366", local, got)
	}
}

func TestDayOfYearOf_FoldsLeapDay(t *testing.T) {
	tests := []struct {
		date time.Time
		want DayOfYear
	}{
		{time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), 365},
		{time.Date(2020, 12, 30, 0, 0, 0, 0, time.UTC), 365},
		{time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC), 365},
		{time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		if got := DayOfYearOf(tt.date); got != tt.want {
			t.Errorf("DayOfYearOf(%s) = %d, want %d", tt.date.Format(time.DateOnly), got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		n    int
		want DayOfYear
	}{
		{1, 1},
		{365, 365},
		{0, 365},
		{-1, 364},
		{-6, 359},
		{366, 1},
		{372, 7},
		{730, 365},
		{-365, 365},
		{-1000, 95},
	}

	for _, tt := range tests {
		if got := Wrap(tt.n); got != tt.want {
			t.Errorf("Wrap(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestWrap_RangeAndIdempotence(t *testing.T) {
	for n := -1000; n <= 1000; n++ {
		w := Wrap(n)
		if !w.Valid() {
			t.Fatalf("Wrap(%d) = %d, outside 1..365", n, w)
		}
		if again := Wrap(int(w)); again != w {
			t.Fatalf("Wrap(Wrap(%d)) = %d, want %d", n, again, w)
		}
	}
}

func TestDayOfYear_Add(t *testing.T) {
	if got := DayOfYear(2).Add(-7); got != 360 {
		t.Errorf("DayOfYear(2).Add(-7) = %d, want 360", got)
	}
	if got := DayOfYear(363).Add(7); got != 5 {
		t.Errorf("DayOfYear(363).Add(7) = %d, want 5", got)
	}
}

func TestFromRaw(t *testing.T) {
	tests := []struct {
		raw    int
		want   DayOfYear
		wantOK bool
	}{
		{1, 1, true},
		{200, 200, true},
		{365, 365, true},
		{366, 365, true},
		{0, 0, false},
		{367, 0, false},
		{-5, 0, false},
	}
	for _, tt := range tests {
		got, ok := FromRaw(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FromRaw(%d) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
