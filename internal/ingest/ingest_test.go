package ingest

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/lox/wastodayweird/internal/cache"
	"github.com/lox/wastodayweird/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(c cache.Cache) Options {
	return Options{
		Cache: c,
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
		},
	}
}

// jsonServer serves body for every request and counts the requests it saw.
func jsonServer(t *testing.T, body string, check func(r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

const archiveBody = `{
	"timezone": "Asia/Kolkata",
	"daily": {
		"time": ["1991-01-01", "1991-01-02", "1991-01-03", "not-a-date"],
		"temperature_2m_mean": [20.5, null, 21.0, 22.0],
		"wind_speed_10m_max": [3.2, 4.1, null, 1.0],
		"relative_humidity_2m_mean": [55, 60, 140, 50]
	}
}`

func TestArchiveClient_FetchDaily(t *testing.T) {
	srv, _ := jsonServer(t, archiveBody, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, ReferenceStart, q.Get("start_date"))
		assert.Equal(t, ReferenceEnd, q.Get("end_date"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Equal(t, "22.3072", q.Get("latitude"))
		assert.Equal(t, "temperature_2m_mean,wind_speed_10m_max,relative_humidity_2m_mean", q.Get("daily"))
	})

	client := NewArchiveClient(srv.URL, testOptions(nil))
	records, err := client.FetchDaily(context.Background(), 22.3072, 73.1812)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, sql.NullFloat64{Float64: 20.5, Valid: true}, records[0].TempMean)
	assert.False(t, records[1].TempMean.Valid, "null temperature")
	assert.True(t, records[1].WindMax.Valid)
	assert.False(t, records[2].WindMax.Valid, "null wind")
	assert.False(t, records[2].HumidityMean.Valid, "implausible humidity is cleared")
}

func TestArchiveClient_NoDailyData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no daily block", `{"timezone":"UTC"}`},
		{"no time axis", `{"daily":{"temperature_2m_mean":[1]}}`},
		{"no temperature", `{"daily":{"time":["1991-01-01"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := jsonServer(t, tt.body, nil)
			client := NewArchiveClient(srv.URL, testOptions(nil))
			_, err := client.FetchDaily(context.Background(), 1, 2)
			assert.ErrorIs(t, err, ErrNoDailyData)
		})
	}
}

func TestArchiveClient_CachesResponses(t *testing.T) {
	srv, calls := jsonServer(t, archiveBody, nil)
	client := NewArchiveClient(srv.URL, testOptions(cache.NewMemory(10, nil)))

	for i := 0; i < 3; i++ {
		_, err := client.FetchDaily(context.Background(), 10, 20)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err := client.FetchDaily(context.Background(), 10, 21)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "different location is a different key")
}

func TestArchiveClient_DoesNotCacheUnusableBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"no daily block", `{"timezone":"UTC"}`, ErrNoDailyData},
		{"malformed json", `{"daily":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body := archiveBody
				if calls.Add(1) == 1 {
					body = tt.body
				}
				w.Write([]byte(body))
			}))
			t.Cleanup(srv.Close)

			client := NewArchiveClient(srv.URL, testOptions(cache.NewMemory(10, nil)))

			_, err := client.FetchDaily(context.Background(), 10, 20)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			records, err := client.FetchDaily(context.Background(), 10, 20)
			require.NoError(t, err)
			assert.Len(t, records, 3)
			assert.Equal(t, int32(2), calls.Load(), "rejected body must not be served from cache")

			_, err = client.FetchDaily(context.Background(), 10, 20)
			require.NoError(t, err)
			assert.Equal(t, int32(2), calls.Load(), "accepted body is cached")
		})
	}
}

func TestUpstream_Retry(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCalls int32
		wantCode  int
	}{
		{"ok", []int{200}, false, 1, 0},
		{"rate limit then ok", []int{429, 200}, false, 2, 0},
		{"server error then ok", []int{503, 502, 200}, false, 3, 0},
		{"retries exhausted", []int{500, 500, 500, 500}, true, 3, 0},
		{"client error is permanent", []int{400, 200}, true, 1, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				status := tt.statuses[min(n, len(tt.statuses)-1)]
				w.WriteHeader(status)
				w.Write([]byte(`{"daily":{"time":[],"temperature_2m_mean":[]}}`))
			}))
			defer srv.Close()

			client := NewArchiveClient(srv.URL, testOptions(nil))
			_, err := client.FetchDaily(context.Background(), 1, 1)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantCode != 0 {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantCode, se.StatusCode)
			}
		})
	}
}

func TestUpstream_ContextCancelled(t *testing.T) {
	srv, calls := jsonServer(t, archiveBody, nil)
	client := NewArchiveClient(srv.URL, testOptions(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchDaily(ctx, 1, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), calls.Load())
}

const forecastBody = `{
	"timezone": "Asia/Kolkata",
	"hourly": {
		"time": ["2025-07-01T00:00", "2025-07-01T12:00", "2025-07-01T18:00", "2025-07-02T00:00"],
		"temperature_2m": [26.0, 32.0, null, 25.0],
		"wind_speed_10m": [2.0, 4.0, 3.0, 1.5],
		"weathercode": [1, 3, 61, 0],
		"relative_humidity_2m": [80, 60, 70, 90]
	},
	"daily": {
		"time": ["2025-07-01", "2025-07-02", "2025-07-03"],
		"temperature_2m_min": [25.5, 24.0, 23.0],
		"temperature_2m_max": [33.0, 31.0, 30.0],
		"wind_speed_10m_max": [5.0, 4.5, null],
		"weathercode": [61, 3, 2]
	}
}`

func TestForecastClient_FetchForecast(t *testing.T) {
	srv, _ := jsonServer(t, forecastBody, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "8", q.Get("forecast_days"))
		assert.Equal(t, "auto", q.Get("timezone"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
	})

	client := NewForecastClient(srv.URL, testOptions(nil))
	fc, err := client.FetchForecast(context.Background(), 22.3, 73.2)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Kolkata", fc.Timezone)
	assert.False(t, fc.FetchedAt.IsZero())

	require.Len(t, fc.Hourly, 3, "incomplete hourly row is skipped")
	assert.Equal(t, "Asia/Kolkata", fc.Hourly[0].Time.Location().String())
	assert.Equal(t, 12, fc.Hourly[1].Time.Hour())
	assert.Equal(t, 3, fc.Hourly[1].WMOCode)

	require.Len(t, fc.Days, 3)
	day1 := fc.Days[0]
	assert.InDelta(t, 29.0, day1.TempMean.Float64, 1e-9)
	assert.InDelta(t, 70.0, day1.HumidityMean.Float64, 1e-9)
	assert.Equal(t, 25.5, day1.TempMin.Float64)
	assert.Equal(t, 33.0, day1.TempMax.Float64)
	assert.Equal(t, sql.NullInt64{Int64: 61, Valid: true}, day1.WMOCode)

	assert.InDelta(t, 25.0, fc.Days[1].TempMean.Float64, 1e-9)
	assert.False(t, fc.Days[2].TempMean.Valid, "day without hourly rows has no mean")
	assert.False(t, fc.Days[2].WindMax.Valid)

	got, ok := fc.Day(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 31.0, got.TempMax.Float64)
}

func TestForecastClient_MissingHourlyVariable(t *testing.T) {
	body := `{"timezone":"UTC","hourly":{"time":["2025-07-01T00:00"],"temperature_2m":[20]},
		"daily":{"time":["2025-07-01"],"temperature_2m_max":[25]}}`
	srv, _ := jsonServer(t, body, nil)

	fc, err := NewForecastClient(srv.URL, testOptions(nil)).FetchForecast(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, fc.Hourly)
	require.Len(t, fc.Days, 1)
	assert.False(t, fc.Days[0].TempMean.Valid)
	assert.True(t, fc.Days[0].TempMax.Valid)
}

func TestGeocodeClient_Search(t *testing.T) {
	body := `{"results":[
		{"name":"Vadodara","latitude":22.3,"longitude":73.18,"admin1":"Gujarat","country":"India"},
		{"name":"Baroda","latitude":-33.1,"longitude":151.2,"country":"Australia"}
	]}`
	srv, _ := jsonServer(t, body, func(r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Vadodara", r.URL.Query().Get("name"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
	})

	places, err := NewGeocodeClient(srv.URL, testOptions(nil)).Search(context.Background(), "  Vadodara ")
	require.NoError(t, err)
	assert.Equal(t, []models.Place{
		{Name: "Vadodara, Gujarat, India", Latitude: 22.3, Longitude: 73.18},
		{Name: "Baroda, Australia", Latitude: -33.1, Longitude: 151.2},
	}, places)
}

func TestGeocodeClient_ShortQuery(t *testing.T) {
	srv, calls := jsonServer(t, `{"results":[]}`, nil)
	client := NewGeocodeClient(srv.URL, testOptions(nil))

	for _, q := range []string{"", "a", "  b  "} {
		places, err := client.Search(context.Background(), q)
		assert.NoError(t, err)
		assert.Empty(t, places)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestGeocodeClient_Reverse(t *testing.T) {
	srv, _ := jsonServer(t, `{"results":[{"name":"Vadodara","admin1":"Gujarat","country":"India"}]}`, func(r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
	})
	name, err := NewGeocodeClient(srv.URL, testOptions(nil)).Reverse(context.Background(), 22.3, 73.18)
	require.NoError(t, err)
	assert.Equal(t, "Vadodara, Gujarat, India", name)

	empty, _ := jsonServer(t, `{}`, nil)
	name, err = NewGeocodeClient(empty.URL, testOptions(nil)).Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestAirQualityClient_FetchCurrent(t *testing.T) {
	body := `{"timezone":"UTC","hourly":{
		"time":["2025-07-01T00:00","2025-07-01T01:00"],
		"pm2_5":[10.0,12.5],"pm10":[20.0,null],"ozone":[50,55],
		"nitrogen_dioxide":[5,6],"sulphur_dioxide":[1,2],"us_aqi":[40,52]}}`
	srv, _ := jsonServer(t, body, nil)

	aq, err := NewAirQualityClient(srv.URL, testOptions(nil)).FetchCurrent(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC), aq.Time)
	assert.Equal(t, 12.5, aq.PM25.Float64)
	assert.False(t, aq.PM10.Valid)
	assert.Equal(t, 52.0, aq.USAQI.Float64)
	assert.Equal(t, 2.0, aq.SulphurDioxide.Float64)

	empty, _ := jsonServer(t, `{"hourly":{"time":[]}}`, nil)
	aq, err = NewAirQualityClient(empty.URL, testOptions(nil)).FetchCurrent(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, aq.Time.IsZero())
	assert.False(t, aq.USAQI.Valid)
}

func valid(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestValidateDaily(t *testing.T) {
	tests := []struct {
		name      string
		rec       models.DailyRecord
		wantFlags []string
	}{
		{
			name:      "valid record",
			rec:       models.DailyRecord{TempMean: valid(25), WindMax: valid(6), HumidityMean: valid(60)},
			wantFlags: nil,
		},
		{
			name:      "missing values are not flagged",
			rec:       models.DailyRecord{},
			wantFlags: nil,
		},
		{
			name:      "temp too hot",
			rec:       models.DailyRecord{TempMean: valid(65)},
			wantFlags: []string{FlagTempOutOfRange},
		},
		{
			name:      "humidity above saturation",
			rec:       models.DailyRecord{HumidityMean: valid(101)},
			wantFlags: []string{FlagHumidityInvalid},
		},
		{
			name:      "negative wind",
			rec:       models.DailyRecord{WindMax: valid(-1)},
			wantFlags: []string{FlagWindSpeedUnlikely},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			flags := ValidateDaily(&rec)
			assert.Equal(t, tt.wantFlags, flags)
			if len(flags) > 0 {
				assert.False(t, rec.TempMean.Valid || rec.WindMax.Valid || rec.HumidityMean.Valid, "flagged value is cleared")
			}
		})
	}
}

type countingPurger struct {
	calls chan struct{}
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls <- struct{}{}
	return 1, nil
}

func TestScheduler_PurgesOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	purger := &countingPurger{calls: make(chan struct{}, 4)}
	s := NewScheduler(nil, nil, purger, models.Location{Name: "test"}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-purger.calls

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 2))

	clock.Advance(time.Hour)
	select {
	case <-purger.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("purge not triggered by ticker")
	}

	cancel()
	<-done
}
