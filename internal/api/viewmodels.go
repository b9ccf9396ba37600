package api

import (
	"database/sql"
	"math"
	"time"

	"github.com/lox/wastodayweird/internal/climate"
	"github.com/lox/wastodayweird/internal/forecast"
	"github.com/lox/wastodayweird/internal/models"
	"github.com/lox/wastodayweird/internal/report"
)

// JSON cannot carry NaN, so unavailable numbers are encoded as null (or
// omitted, for the spread fields).

func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nullNum(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return num(v.Float64)
}

// mean is null for an empty sample, as the normals mean of nothing is not a
// number.
func mean(s climate.Summary) *float64 {
	if s.N == 0 {
		return nil
	}
	return num(s.Mean)
}

type NormalsDaily struct {
	TempMean     *float64 `json:"t_mean_c_mean"`
	TempStd      *float64 `json:"t_mean_c_std,omitempty"`
	WindMean     *float64 `json:"wind_max_ms_mean"`
	WindStd      *float64 `json:"wind_max_ms_std,omitempty"`
	HumidityMean *float64 `json:"rh_pct_mean"`
	HumidityStd  *float64 `json:"rh_pct_std,omitempty"`
}

type SeriesPointView struct {
	DayOfYear int      `json:"doy"`
	TempMean  *float64 `json:"t_mean_c_mean"`
	TempStd   *float64 `json:"t_mean_c_std,omitempty"`
	N         int      `json:"n"`
	WindMean  *float64 `json:"wind_max_ms_mean"`
	WindStd   *float64 `json:"wind_max_ms_std,omitempty"`
	WindN     int      `json:"wind_n"`
}

type SamplesView struct {
	Temperature []float64 `json:"temp_c"`
	Wind        []float64 `json:"wind_ms"`
	Humidity    []float64 `json:"rh_pct"`
}

type NormalsResponse struct {
	DayOfYear       int               `json:"dayofyear"`
	Hourly          []struct{}        `json:"hourly"`
	Daily           NormalsDaily      `json:"daily"`
	SampleSize      int               `json:"sample_size"`
	WeekSeries      []SeriesPointView `json:"week_series"`
	FortnightSeries []SeriesPointView `json:"fortnight_series"`
	Samples         SamplesView       `json:"samples"`
}

func newNormalsResponse(n *climate.Normals) NormalsResponse {
	return NormalsResponse{
		DayOfYear: int(n.DayOfYear),
		Hourly:    []struct{}{},
		Daily: NormalsDaily{
			TempMean:     mean(n.Temperature),
			TempStd:      nullNum(n.Temperature.StdDev),
			WindMean:     mean(n.Wind),
			WindStd:      nullNum(n.Wind.StdDev),
			HumidityMean: mean(n.Humidity),
			HumidityStd:  nullNum(n.Humidity.StdDev),
		},
		SampleSize:      n.SampleSize,
		WeekSeries:      seriesView(n.Week),
		FortnightSeries: seriesView(n.Fortnight),
		Samples: SamplesView{
			Temperature: nonNil(n.Samples.Temperature),
			Wind:        nonNil(n.Samples.Wind),
			Humidity:    nonNil(n.Samples.Humidity),
		},
	}
}

func seriesView(points []climate.SeriesPoint) []SeriesPointView {
	out := make([]SeriesPointView, 0, len(points))
	for _, p := range points {
		out = append(out, SeriesPointView{
			DayOfYear: int(p.DayOfYear),
			TempMean:  mean(p.Temperature),
			TempStd:   nullNum(p.Temperature.StdDev),
			N:         p.Temperature.N,
			WindMean:  mean(p.Wind),
			WindStd:   nullNum(p.Wind.StdDev),
			WindN:     p.Wind.N,
		})
	}
	return out
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

type WeatherView struct {
	Code      *int   `json:"code"`
	Label     string `json:"label"`
	Icon      string `json:"icon"`
	Condition string `json:"condition,omitempty"`
}

func weatherView(day models.ForecastDay) WeatherView {
	if !day.WMOCode.Valid {
		info := forecast.DescribeCode(-1)
		return WeatherView{Label: info.Label, Icon: info.Icon}
	}
	code := int(day.WMOCode.Int64)
	info := forecast.DescribeCode(code)
	v := WeatherView{Code: &code, Label: info.Label, Icon: info.Icon}
	if day.TempMax.Valid && day.TempMin.Valid {
		v.Condition = string(forecast.Condition(code, day.TempMax.Float64, day.TempMin.Float64))
	}
	return v
}

type HourlyView struct {
	Time     string  `json:"ts"`
	Temp     float64 `json:"temp_c"`
	Wind     float64 `json:"wind_ms"`
	WMOCode  int     `json:"wmo_code"`
	Humidity float64 `json:"rh_pct"`
}

type ForecastDailyView struct {
	TempMean     *float64    `json:"t_mean_c"`
	TempMin      *float64    `json:"t_min_c"`
	TempMax      *float64    `json:"t_max_c"`
	WindMax      *float64    `json:"wind_max_ms"`
	WMOCode      *int64      `json:"wmo_code"`
	HumidityMean *float64    `json:"rh_mean_pct"`
	Weather      WeatherView `json:"weather"`
}

type ForecastSeriesView struct {
	Day          string   `json:"day"`
	TempMean     *float64 `json:"t_mean_c"`
	WindMax      *float64 `json:"wind_max_ms"`
	WMOCode      *int64   `json:"wmo_code"`
	HumidityMean *float64 `json:"rh_mean_pct"`
}

type ForecastResponse struct {
	Day         string               `json:"day"`
	Hourly      []HourlyView         `json:"hourly"`
	Daily       ForecastDailyView    `json:"daily"`
	DailySeries []ForecastSeriesView `json:"daily_series"`
	Timezone    string               `json:"tz"`
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func newForecastResponse(fc *models.Forecast, day models.ForecastDay) ForecastResponse {
	resp := ForecastResponse{
		Day:      day.Date.Format(time.DateOnly),
		Timezone: fc.Timezone,
		Hourly:   make([]HourlyView, 0, len(fc.Hourly)),
		Daily: ForecastDailyView{
			TempMean:     nullNum(day.TempMean),
			TempMin:      nullNum(day.TempMin),
			TempMax:      nullNum(day.TempMax),
			WindMax:      nullNum(day.WindMax),
			WMOCode:      nullInt(day.WMOCode),
			HumidityMean: nullNum(day.HumidityMean),
			Weather:      weatherView(day),
		},
		DailySeries: make([]ForecastSeriesView, 0, len(fc.Days)),
	}
	for _, h := range fc.Hourly {
		resp.Hourly = append(resp.Hourly, HourlyView{
			Time:     h.Time.Format("2006-01-02T15:04"),
			Temp:     h.Temp,
			Wind:     h.Wind,
			WMOCode:  h.WMOCode,
			Humidity: h.Humidity,
		})
	}
	for _, d := range fc.Days {
		resp.DailySeries = append(resp.DailySeries, ForecastSeriesView{
			Day:          d.Date.Format(time.DateOnly),
			TempMean:     nullNum(d.TempMean),
			WindMax:      nullNum(d.WindMax),
			WMOCode:      nullInt(d.WMOCode),
			HumidityMean: nullNum(d.HumidityMean),
		})
	}
	return resp
}

type AnomalyView struct {
	Actual     *float64 `json:"actual"`
	Normal     *float64 `json:"normal"`
	Std        *float64 `json:"std,omitempty"`
	Delta      *float64 `json:"delta"`
	Percentile *float64 `json:"percentile"`
	ZScore     *float64 `json:"z"`
	Summary    string   `json:"summary"`
}

func anomalyView(a climate.Anomaly, normal climate.Summary, unit string) AnomalyView {
	v := AnomalyView{
		Actual:     num(a.Actual),
		Normal:     mean(normal),
		Std:        nullNum(normal.StdDev),
		Delta:      num(a.Delta),
		Percentile: num(a.Percentile),
		ZScore:     nullNum(a.ZScore),
		Summary:    report.FormatAnomaly(a, unit),
	}
	return v
}

type UpcomingView struct {
	Day     string   `json:"day"`
	Label   string   `json:"label"`
	Actual  *float64 `json:"actual"`
	Normal  *float64 `json:"normal"`
	Anomaly *float64 `json:"anomaly"`
}

type TodayResponse struct {
	Location    models.Place   `json:"location"`
	Day         string         `json:"day"`
	DayOfYear   int            `json:"dayofyear"`
	Timezone    string         `json:"tz"`
	GeneratedAt time.Time      `json:"generated_at"`
	Weather     WeatherView    `json:"weather"`
	Temperature AnomalyView    `json:"temperature"`
	Wind        AnomalyView    `json:"wind"`
	Humidity    AnomalyView    `json:"humidity"`
	SampleSize  int            `json:"sample_size"`
	Upcoming    []UpcomingView `json:"upcoming"`
}

func newTodayResponse(r *report.Report) TodayResponse {
	resp := TodayResponse{
		Location: models.Place{
			Name:      r.Location.Name,
			Latitude:  r.Location.Latitude,
			Longitude: r.Location.Longitude,
		},
		Day:         r.Date.Format(time.DateOnly),
		DayOfYear:   int(r.DayOfYear),
		Timezone:    r.Timezone,
		GeneratedAt: r.GeneratedAt,
		Weather:     weatherView(r.Day),
		Temperature: anomalyView(r.Temperature, r.Normals.Temperature, "°C"),
		Wind:        anomalyView(r.Wind, r.Normals.Wind, "m/s"),
		Humidity:    anomalyView(r.Humidity, r.Normals.Humidity, "%"),
		SampleSize:  r.Normals.SampleSize,
		Upcoming:    make([]UpcomingView, 0, len(r.Upcoming)),
	}
	for i, u := range r.Upcoming {
		label := u.Date.Format("01-02")
		if i == 0 {
			label = "Today"
		}
		resp.Upcoming = append(resp.Upcoming, UpcomingView{
			Day:     u.Date.Format(time.DateOnly),
			Label:   label,
			Actual:  num(u.Actual),
			Normal:  num(u.Normal),
			Anomaly: num(u.Anomaly),
		})
	}
	return resp
}

type AirQualityResponse struct {
	Time            string   `json:"ts,omitempty"`
	PM25            *float64 `json:"pm2_5"`
	PM10            *float64 `json:"pm10"`
	Ozone           *float64 `json:"ozone"`
	NitrogenDioxide *float64 `json:"nitrogen_dioxide"`
	SulphurDioxide  *float64 `json:"sulphur_dioxide"`
	USAQI           *float64 `json:"us_aqi"`
	Category        string   `json:"category,omitempty"`
}

func newAirQualityResponse(aq *models.AirQuality) AirQualityResponse {
	resp := AirQualityResponse{
		PM25:            nullNum(aq.PM25),
		PM10:            nullNum(aq.PM10),
		Ozone:           nullNum(aq.Ozone),
		NitrogenDioxide: nullNum(aq.NitrogenDioxide),
		SulphurDioxide:  nullNum(aq.SulphurDioxide),
		USAQI:           nullNum(aq.USAQI),
	}
	if !aq.Time.IsZero() {
		resp.Time = aq.Time.Format("2006-01-02T15:04")
	}
	if aq.USAQI.Valid {
		resp.Category = forecast.AQILabel(aq.USAQI.Float64)
	}
	return resp
}
