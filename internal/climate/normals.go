package climate

import "github.com/lox/wastodayweird/internal/models"

const (
	WeekHalfSpan      = 3
	FortnightHalfSpan = 7
)

// SeriesPoint holds the smoothed statistics for one centre day.
type SeriesPoint struct {
	DayOfYear   DayOfYear
	Temperature Summary
	Wind        Summary
}

// Samples are the raw window values behind a Normals summary, kept for
// percentile lookups.
type Samples struct {
	Temperature []float64
	Wind        []float64
	Humidity    []float64
}

// Normals is the climatological baseline for one day of the year.
type Normals struct {
	DayOfYear   DayOfYear
	Temperature Summary
	Wind        Summary
	Humidity    Summary
	SampleSize  int
	Samples     Samples
	Week        []SeriesPoint
	Fortnight   []SeriesPoint
}

// ComputeNormals summarises the ±7 day window around target across every
// year in records, along with week (±3) and fortnight (±7) series of
// smoothed statistics centred on the neighbouring days.
func ComputeNormals(records []models.DailyRecord, target DayOfYear) *Normals {
	series := NewSeries(records)

	sampled := series.Sample(BuildWindow(target, WindowHalfWidth), Temperature, Wind, Humidity)
	n := &Normals{
		DayOfYear:   target,
		Temperature: Summarize(sampled[0]),
		Wind:        Summarize(sampled[1]),
		Humidity:    Summarize(sampled[2]),
		SampleSize:  len(sampled[0]),
		Samples: Samples{
			Temperature: sampled[0],
			Wind:        sampled[1],
			Humidity:    sampled[2],
		},
	}

	points := make(map[DayOfYear]SeriesPoint, 2*FortnightHalfSpan+1)
	pointAt := func(center DayOfYear) SeriesPoint {
		if p, ok := points[center]; ok {
			return p
		}
		s := series.Sample(BuildWindow(center, WindowHalfWidth), Temperature, Wind)
		p := SeriesPoint{
			DayOfYear:   center,
			Temperature: Summarize(s[0]),
			Wind:        Summarize(s[1]),
		}
		points[center] = p
		return p
	}

	n.Fortnight = make([]SeriesPoint, 0, 2*FortnightHalfSpan+1)
	for off := -FortnightHalfSpan; off <= FortnightHalfSpan; off++ {
		n.Fortnight = append(n.Fortnight, pointAt(target.Add(off)))
	}
	n.Week = make([]SeriesPoint, 0, 2*WeekHalfSpan+1)
	for off := -WeekHalfSpan; off <= WeekHalfSpan; off++ {
		n.Week = append(n.Week, pointAt(target.Add(off)))
	}

	return n
}

// PointFor returns the fortnight series entry centred on doy.
func (n *Normals) PointFor(doy DayOfYear) (SeriesPoint, bool) {
	for _, p := range n.Fortnight {
		if p.DayOfYear == doy {
			return p, true
		}
	}
	return SeriesPoint{}, false
}
