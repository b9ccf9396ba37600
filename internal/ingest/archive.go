package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/lox/wastodayweird/internal/models"
)

// ErrNoDailyData is returned when the archive response lacks the daily date
// axis or the mean temperature series.
var ErrNoDailyData = errors.New("no daily data")

const (
	ReferenceStart = "1991-01-01"
	ReferenceEnd   = "2020-12-31"

	archiveTTL = 30 * 24 * time.Hour
)

// ArchiveClient fetches the 1991-2020 ERA5 daily reanalysis for a location.
type ArchiveClient struct {
	baseURL  string
	upstream *upstream
}

func NewArchiveClient(baseURL string, opts Options) *ArchiveClient {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}
	return &ArchiveClient{baseURL: baseURL, upstream: newUpstream(opts)}
}

type archiveResponse struct {
	Timezone string `json:"timezone"`
	Daily    *struct {
		Time         []string   `json:"time"`
		TempMean     []*float64 `json:"temperature_2m_mean"`
		WindMax      []*float64 `json:"wind_speed_10m_max"`
		HumidityMean []*float64 `json:"relative_humidity_2m_mean"`
	} `json:"daily"`
}

// FetchDaily returns one record per archive day, in archive order. Null or
// implausible values are carried as invalid fields.
func (c *ArchiveClient) FetchDaily(ctx context.Context, lat, lon float64) ([]models.DailyRecord, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("start_date", ReferenceStart)
	params.Set("end_date", ReferenceEnd)
	params.Set("daily", "temperature_2m_mean,wind_speed_10m_max,relative_humidity_2m_mean")
	params.Set("timezone", "auto")
	params.Set("wind_speed_unit", "ms")

	records, err := get(ctx, c.upstream, "archive", c.baseURL+"?"+params.Encode(), archiveTTL, parseArchive)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	return records, nil
}

func parseArchive(body []byte) ([]models.DailyRecord, error) {
	var data archiveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal archive: %w", err)
	}
	if data.Daily == nil || data.Daily.Time == nil || data.Daily.TempMean == nil {
		return nil, ErrNoDailyData
	}

	records := make([]models.DailyRecord, 0, len(data.Daily.Time))
	skipped, flagged := 0, 0
	for i, day := range data.Daily.Time {
		date, err := time.Parse(time.DateOnly, day)
		if err != nil {
			skipped++
			continue
		}
		rec := models.DailyRecord{
			Date:         date,
			TempMean:     at(data.Daily.TempMean, i),
			WindMax:      at(data.Daily.WindMax, i),
			HumidityMean: at(data.Daily.HumidityMean, i),
		}
		if flags := ValidateDaily(&rec); len(flags) > 0 {
			flagged++
		}
		records = append(records, rec)
	}

	if skipped > 0 || flagged > 0 {
		log.Printf("ingest: archive parsed %d days, skipped %d bad dates, flagged %d implausible", len(records), skipped, flagged)
	}
	return records, nil
}

func at(values []*float64, i int) sql.NullFloat64 {
	if i >= len(values) || values[i] == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *values[i], Valid: true}
}
