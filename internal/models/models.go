package models

import (
	"database/sql"
	"time"
)

type Location struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DailyRecord is one day of archive or forecast daily aggregates.
// Date is a UTC calendar date with no time-of-day component.
type DailyRecord struct {
	Date         time.Time
	TempMean     sql.NullFloat64
	WindMax      sql.NullFloat64
	HumidityMean sql.NullFloat64
}

type HourlyPoint struct {
	Time     time.Time
	Temp     float64
	Wind     float64
	WMOCode  int
	Humidity float64
}

type ForecastDay struct {
	Date         time.Time
	TempMean     sql.NullFloat64
	TempMin      sql.NullFloat64
	TempMax      sql.NullFloat64
	WindMax      sql.NullFloat64
	HumidityMean sql.NullFloat64
	WMOCode      sql.NullInt64
}

type Forecast struct {
	Timezone  string
	FetchedAt time.Time
	Hourly    []HourlyPoint
	Days      []ForecastDay
}

// Day returns the forecast day matching date's calendar day.
func (f *Forecast) Day(date time.Time) (ForecastDay, bool) {
	key := date.Format(time.DateOnly)
	for _, d := range f.Days {
		if d.Date.Format(time.DateOnly) == key {
			return d, true
		}
	}
	return ForecastDay{}, false
}

type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

type AirQuality struct {
	Time            time.Time
	PM10            sql.NullFloat64
	PM25            sql.NullFloat64
	Ozone           sql.NullFloat64
	NitrogenDioxide sql.NullFloat64
	SulphurDioxide  sql.NullFloat64
	USAQI           sql.NullFloat64
}
