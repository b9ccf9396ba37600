package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
	_ "time/tzdata"

	"github.com/lox/wastodayweird/internal/models"
)

const (
	ForecastDays = 8

	forecastTTL    = 15 * time.Minute
	hourlyTimeForm = "2006-01-02T15:04"
)

// ForecastClient fetches the hourly and daily Open-Meteo forecast.
type ForecastClient struct {
	baseURL  string
	upstream *upstream
	now      func() time.Time
}

func NewForecastClient(baseURL string, opts Options) *ForecastClient {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	return &ForecastClient{baseURL: baseURL, upstream: newUpstream(opts), now: time.Now}
}

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Hourly   *struct {
		Time     []string   `json:"time"`
		Temp     []*float64 `json:"temperature_2m"`
		Wind     []*float64 `json:"wind_speed_10m"`
		Code     []*float64 `json:"weathercode"`
		Humidity []*float64 `json:"relative_humidity_2m"`
	} `json:"hourly"`
	Daily *struct {
		Time    []string   `json:"time"`
		TempMin []*float64 `json:"temperature_2m_min"`
		TempMax []*float64 `json:"temperature_2m_max"`
		WindMax []*float64 `json:"wind_speed_10m_max"`
		Code    []*float64 `json:"weathercode"`
	} `json:"daily"`
}

func (c *ForecastClient) FetchForecast(ctx context.Context, lat, lon float64) (*models.Forecast, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("timezone", "auto")
	params.Set("hourly", "temperature_2m,wind_speed_10m,weathercode,relative_humidity_2m")
	params.Set("daily", "temperature_2m_min,temperature_2m_max,wind_speed_10m_max,weathercode")
	params.Set("forecast_days", fmt.Sprint(ForecastDays))
	params.Set("wind_speed_unit", "ms")

	fc, err := get(ctx, c.upstream, "forecast", c.baseURL+"?"+params.Encode(), forecastTTL, parseForecast)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	fc.FetchedAt = c.now().UTC()
	return fc, nil
}

type dayAccumulator struct {
	tempSum, humSum float64
	n               int
}

func parseForecast(body []byte) (*models.Forecast, error) {
	var data forecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal forecast: %w", err)
	}

	loc, err := time.LoadLocation(data.Timezone)
	if err != nil || data.Timezone == "" {
		loc = time.UTC
	}

	fc := &models.Forecast{Timezone: data.Timezone}

	// Only rows with every hourly variable present contribute to the
	// hourly list and the daily means.
	sums := make(map[string]*dayAccumulator)
	if h := data.Hourly; h != nil && h.Temp != nil && h.Wind != nil && h.Code != nil && h.Humidity != nil {
		for i, ts := range h.Time {
			temp, wind, code, hum := at(h.Temp, i), at(h.Wind, i), at(h.Code, i), at(h.Humidity, i)
			if !temp.Valid || !wind.Valid || !code.Valid || !hum.Valid {
				continue
			}
			t, err := time.ParseInLocation(hourlyTimeForm, ts, loc)
			if err != nil {
				continue
			}
			fc.Hourly = append(fc.Hourly, models.HourlyPoint{
				Time:     t,
				Temp:     temp.Float64,
				Wind:     wind.Float64,
				WMOCode:  int(code.Float64),
				Humidity: hum.Float64,
			})

			day := ts[:len(time.DateOnly)]
			acc, ok := sums[day]
			if !ok {
				acc = &dayAccumulator{}
				sums[day] = acc
			}
			acc.tempSum += temp.Float64
			acc.humSum += hum.Float64
			acc.n++
		}
	}

	if d := data.Daily; d != nil {
		for i, day := range d.Time {
			date, err := time.Parse(time.DateOnly, day)
			if err != nil {
				continue
			}
			fd := models.ForecastDay{
				Date:    date,
				TempMin: at(d.TempMin, i),
				TempMax: at(d.TempMax, i),
				WindMax: at(d.WindMax, i),
			}
			if code := at(d.Code, i); code.Valid {
				fd.WMOCode = sql.NullInt64{Int64: int64(code.Float64), Valid: true}
			}
			if acc, ok := sums[day]; ok && acc.n > 0 {
				fd.TempMean = sql.NullFloat64{Float64: acc.tempSum / float64(acc.n), Valid: true}
				fd.HumidityMean = sql.NullFloat64{Float64: acc.humSum / float64(acc.n), Valid: true}
			}
			fc.Days = append(fc.Days, fd)
		}
	}

	return fc, nil
}
