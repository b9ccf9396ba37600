package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/wastodayweird/internal/cache"
	"github.com/lox/wastodayweird/internal/httputil"
	"github.com/lox/wastodayweird/internal/metrics"
)

const (
	DefaultArchiveURL    = "https://archive-api.open-meteo.com/v1/era5"
	DefaultForecastURL   = "https://api.open-meteo.com/v1/forecast"
	DefaultGeocodeURL    = "https://geocoding-api.open-meteo.com/v1"
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

// StatusError is returned when an upstream answers with a non-200 status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Options configures the HTTP plumbing shared by all Open-Meteo clients.
type Options struct {
	HTTPClient *http.Client
	Cache      cache.Cache
	// NewBackOff returns the retry policy for a single request. Defaults to
	// exponential backoff capped at one minute.
	NewBackOff func() backoff.BackOff
}

type upstream struct {
	client     *http.Client
	cache      cache.Cache
	newBackOff func() backoff.BackOff
}

func newUpstream(opts Options) *upstream {
	u := &upstream{
		client:     opts.HTTPClient,
		cache:      opts.Cache,
		newBackOff: opts.NewBackOff,
	}
	if u.client == nil {
		u.client = httputil.NewClient(httputil.DefaultTimeout)
	}
	if u.cache == nil {
		u.cache = cache.Nop{}
	}
	if u.newBackOff == nil {
		u.newBackOff = func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = time.Minute
			return bo
		}
	}
	return u
}

// get fetches url and decodes it with parse. When ttl is positive the raw
// body is served from and stored in the response cache. A body is stored only
// after parse accepts it, and a cached body parse rejects is refetched.
func get[T any](ctx context.Context, u *upstream, endpoint, url string, ttl time.Duration, parse func([]byte) (T, error)) (T, error) {
	key := endpoint + ":" + url

	if ttl > 0 {
		body, ok, err := u.cache.Get(ctx, key)
		if err != nil {
			log.Printf("ingest: cache get %s: %v", endpoint, err)
		}
		if ok {
			v, err := parse(body)
			if err == nil {
				metrics.CacheLookups.WithLabelValues(endpoint, "hit").Inc()
				return v, nil
			}
			log.Printf("ingest: discarding cached %s payload: %v", endpoint, err)
		}
		metrics.CacheLookups.WithLabelValues(endpoint, "miss").Inc()
	}

	body, err := u.fetch(ctx, endpoint, url)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := parse(body)
	if err != nil {
		return v, err
	}

	if ttl > 0 {
		if err := u.cache.Set(ctx, key, body, ttl); err != nil {
			log.Printf("ingest: cache set %s: %v", endpoint, err)
		}
	}
	return v, nil
}

// decodeJSON returns a parse function that unmarshals a body into T.
func decodeJSON[T any](what string) func([]byte) (T, error) {
	return func(body []byte) (T, error) {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return v, fmt.Errorf("unmarshal %s: %w", what, err)
		}
		return v, nil
	}
}

// fetch performs the request, retrying rate limits and server errors.
func (u *upstream) fetch(ctx context.Context, endpoint, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		start := time.Now()
		resp, err := u.client.Do(req)
		metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		metrics.UpstreamCallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%s: retryable status %d", endpoint, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(&StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(b)})
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(u.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
