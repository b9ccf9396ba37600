package ingest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/lox/wastodayweird/internal/models"
)

const airQualityTTL = 30 * time.Minute

type AirQualityClient struct {
	baseURL  string
	upstream *upstream
}

func NewAirQualityClient(baseURL string, opts Options) *AirQualityClient {
	if baseURL == "" {
		baseURL = DefaultAirQualityURL
	}
	return &AirQualityClient{baseURL: baseURL, upstream: newUpstream(opts)}
}

type airQualityResponse struct {
	Timezone string `json:"timezone"`
	Hourly   *struct {
		Time            []string   `json:"time"`
		PM25            []*float64 `json:"pm2_5"`
		PM10            []*float64 `json:"pm10"`
		Ozone           []*float64 `json:"ozone"`
		NitrogenDioxide []*float64 `json:"nitrogen_dioxide"`
		SulphurDioxide  []*float64 `json:"sulphur_dioxide"`
		USAQI           []*float64 `json:"us_aqi"`
	} `json:"hourly"`
}

// FetchCurrent returns the readings of the last hourly slot the upstream
// provides. A response without hourly slots yields an empty reading.
func (c *AirQualityClient) FetchCurrent(ctx context.Context, lat, lon float64) (*models.AirQuality, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("hourly", "pm2_5,pm10,ozone,nitrogen_dioxide,sulphur_dioxide,us_aqi")
	params.Set("timezone", "auto")

	data, err := get(ctx, c.upstream, "airquality", c.baseURL+"?"+params.Encode(), airQualityTTL, decodeJSON[airQualityResponse]("air quality"))
	if err != nil {
		return nil, fmt.Errorf("fetch air quality: %w", err)
	}

	aq := &models.AirQuality{}
	h := data.Hourly
	if h == nil || len(h.Time) == 0 {
		return aq, nil
	}

	loc, err := time.LoadLocation(data.Timezone)
	if err != nil || data.Timezone == "" {
		loc = time.UTC
	}

	i := len(h.Time) - 1
	if t, err := time.ParseInLocation(hourlyTimeForm, h.Time[i], loc); err == nil {
		aq.Time = t
	}
	aq.PM25 = at(h.PM25, i)
	aq.PM10 = at(h.PM10, i)
	aq.Ozone = at(h.Ozone, i)
	aq.NitrogenDioxide = at(h.NitrogenDioxide, i)
	aq.SulphurDioxide = at(h.SulphurDioxide, i)
	aq.USAQI = at(h.USAQI, i)
	return aq, nil
}
