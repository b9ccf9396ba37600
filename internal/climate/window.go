package climate

import (
	"database/sql"

	"github.com/lox/wastodayweird/internal/models"
)

// WindowHalfWidth is the number of days either side of a centre day that
// contribute to its statistics.
const WindowHalfWidth = 7

// Window is a set of days of the year used as a membership test.
type Window map[DayOfYear]struct{}

// BuildWindow returns {Wrap(center+o) : o in [-halfWidth, halfWidth]}.
func BuildWindow(center DayOfYear, halfWidth int) Window {
	w := make(Window, 2*halfWidth+1)
	for off := -halfWidth; off <= halfWidth; off++ {
		w[center.Add(off)] = struct{}{}
	}
	return w
}

func (w Window) Contains(d DayOfYear) bool {
	_, ok := w[d]
	return ok
}

// Accessor extracts one tracked variable from a record.
type Accessor func(models.DailyRecord) sql.NullFloat64

var (
	Temperature Accessor = func(r models.DailyRecord) sql.NullFloat64 { return r.TempMean }
	Wind        Accessor = func(r models.DailyRecord) sql.NullFloat64 { return r.WindMax }
	Humidity    Accessor = func(r models.DailyRecord) sql.NullFloat64 { return r.HumidityMean }
)

// SampleVariable returns, in input order, the present and finite values of
// field for every record whose day of year falls inside w.
func SampleVariable(records []models.DailyRecord, w Window, field Accessor) []float64 {
	return NewSeries(records).Sample(w, field)[0]
}

// Series is a read-only view over a daily record set with each record's day
// of year computed once, so it can be sampled repeatedly with different
// windows.
type Series struct {
	records []models.DailyRecord
	days    []DayOfYear
}

func NewSeries(records []models.DailyRecord) *Series {
	days := make([]DayOfYear, len(records))
	for i, r := range records {
		days[i] = DayOfYearOf(r.Date)
	}
	return &Series{records: records, days: days}
}

// Sample collects one sample per accessor in a single pass over the series.
// The returned slices are never nil.
func (s *Series) Sample(w Window, fields ...Accessor) [][]float64 {
	out := make([][]float64, len(fields))
	for i := range out {
		out[i] = []float64{}
	}
	for i, d := range s.days {
		if !w.Contains(d) {
			continue
		}
		for j, field := range fields {
			v := field(s.records[i])
			if v.Valid && isFinite(v.Float64) {
				out[j] = append(out[j], v.Float64)
			}
		}
	}
	return out
}
