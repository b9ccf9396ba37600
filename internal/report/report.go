package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lox/wastodayweird/internal/climate"
	"github.com/lox/wastodayweird/internal/metrics"
	"github.com/lox/wastodayweird/internal/models"
)

// ErrDateNotInForecast is returned when the requested date is not one of the
// forecast days.
var ErrDateNotInForecast = errors.New("date not in forecast")

// UpcomingDays is the number of forecast days, starting at the target day,
// compared against the fortnight normals.
const UpcomingDays = 7

type ForecastSource interface {
	FetchForecast(ctx context.Context, lat, lon float64) (*models.Forecast, error)
}

type ArchiveSource interface {
	FetchDaily(ctx context.Context, lat, lon float64) ([]models.DailyRecord, error)
}

// Builder assembles normals and anomaly reports from the forecast and the
// reanalysis archive.
type Builder struct {
	forecast ForecastSource
	archive  ArchiveSource
	clock    clockwork.Clock
}

func NewBuilder(forecast ForecastSource, archive ArchiveSource, clock clockwork.Clock) *Builder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Builder{forecast: forecast, archive: archive, clock: clock}
}

// Normals fetches the archive for a location and computes the normals for doy.
func (b *Builder) Normals(ctx context.Context, lat, lon float64, doy climate.DayOfYear) (*climate.Normals, error) {
	records, err := b.archive.FetchDaily(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return b.computeNormals(records, doy), nil
}

func (b *Builder) computeNormals(records []models.DailyRecord, doy climate.DayOfYear) *climate.Normals {
	start := b.clock.Now()
	n := climate.ComputeNormals(records, doy)
	metrics.NormalsDuration.Observe(b.clock.Since(start).Seconds())
	return n
}

// UpcomingDay is one forecast day compared against its smoothed normal.
type UpcomingDay struct {
	Date    time.Time
	Actual  float64
	Normal  float64
	Anomaly float64
}

// Report is the "was today weird" answer for one location and day.
type Report struct {
	Location    models.Location
	Date        time.Time
	DayOfYear   climate.DayOfYear
	GeneratedAt time.Time
	Timezone    string

	Day         models.ForecastDay
	Temperature climate.Anomaly
	Wind        climate.Anomaly
	Humidity    climate.Anomaly
	Normals     *climate.Normals
	Upcoming    []UpcomingDay
}

// Build produces the report for loc on date. A zero date selects the first
// forecast day, which is "today" in the location's timezone.
func (b *Builder) Build(ctx context.Context, loc models.Location, date time.Time) (*Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		fc       *models.Forecast
		records  []models.DailyRecord
	)
	// fail keeps the first error, so a fetch cancelled because the other one
	// failed does not mask the cause.
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		if fc, err = b.forecast.FetchForecast(ctx, loc.Latitude, loc.Longitude); err != nil {
			fail(fmt.Errorf("forecast: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if records, err = b.archive.FetchDaily(ctx, loc.Latitude, loc.Longitude); err != nil {
			fail(fmt.Errorf("archive: %w", err))
		}
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	var day models.ForecastDay
	if date.IsZero() {
		if len(fc.Days) == 0 {
			return nil, ErrDateNotInForecast
		}
		day = fc.Days[0]
	} else {
		var ok bool
		if day, ok = fc.Day(date); !ok {
			return nil, fmt.Errorf("%w: %s", ErrDateNotInForecast, date.Format(time.DateOnly))
		}
	}

	doy := climate.DayOfYearOf(day.Date)
	normals := b.computeNormals(records, doy)

	r := &Report{
		Location:    loc,
		Date:        day.Date,
		DayOfYear:   doy,
		GeneratedAt: b.clock.Now().UTC(),
		Timezone:    fc.Timezone,
		Day:         day,
		Temperature: climate.ComputeAnomaly(value(day.TempMean), normals.Temperature, normals.Samples.Temperature),
		Wind:        climate.ComputeAnomaly(value(day.WindMax), normals.Wind, normals.Samples.Wind),
		Humidity:    climate.ComputeAnomaly(value(day.HumidityMean), normals.Humidity, normals.Samples.Humidity),
		Normals:     normals,
		Upcoming:    upcoming(fc.Days, day.Date, normals),
	}
	return r, nil
}

// upcoming compares up to UpcomingDays forecast days from start against the
// fortnight normals. Days whose doy falls outside the series get NaN.
func upcoming(days []models.ForecastDay, start time.Time, normals *climate.Normals) []UpcomingDay {
	var out []UpcomingDay
	for _, d := range days {
		if d.Date.Before(start) {
			continue
		}
		if len(out) == UpcomingDays {
			break
		}

		u := UpcomingDay{
			Date:    d.Date,
			Actual:  value(d.TempMean),
			Normal:  math.NaN(),
			Anomaly: math.NaN(),
		}
		if p, ok := normals.PointFor(climate.DayOfYearOf(d.Date)); ok {
			u.Normal = p.Temperature.Mean
		}
		if !math.IsNaN(u.Actual) && !math.IsNaN(u.Normal) {
			u.Anomaly = u.Actual - u.Normal
		}
		out = append(out, u)
	}
	return out
}

func value(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
