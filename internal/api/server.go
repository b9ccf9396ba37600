package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lox/wastodayweird/internal/climate"
	"github.com/lox/wastodayweird/internal/metrics"
	"github.com/lox/wastodayweird/internal/models"
	"github.com/lox/wastodayweird/internal/report"
	"github.com/lox/wastodayweird/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Reports interface {
	Build(ctx context.Context, loc models.Location, date time.Time) (*report.Report, error)
	Normals(ctx context.Context, lat, lon float64, doy climate.DayOfYear) (*climate.Normals, error)
}

type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.Place, error)
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

type AirQualitySource interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (*models.AirQuality, error)
}

// CacheStats reports on the persistent payload cache, when one is in use.
type CacheStats interface {
	Stats(ctx context.Context) (*store.PayloadStats, error)
}

type Options struct {
	Addr       string
	Location   models.Location
	Reports    Reports
	Forecast   report.ForecastSource
	Geocoder   Geocoder
	AirQuality AirQualitySource
	CacheStats CacheStats
	Clock      clockwork.Clock
}

type Server struct {
	addr       string
	location   models.Location
	reports    Reports
	forecast   report.ForecastSource
	geocoder   Geocoder
	airQuality AirQualitySource
	cacheStats CacheStats
	clock      clockwork.Clock
	started    time.Time
}

func NewServer(opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		addr:       opts.Addr,
		location:   opts.Location,
		reports:    opts.Reports,
		forecast:   opts.Forecast,
		geocoder:   opts.Geocoder,
		airQuality: opts.AirQuality,
		cacheStats: opts.CacheStats,
		clock:      clock,
		started:    clock.Now(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/normals", s.instrument("normals", s.handleNormals))
	mux.Handle("GET /api/forecast", s.instrument("forecast", s.handleForecast))
	mux.Handle("GET /api/today", s.instrument("today", s.handleToday))
	mux.Handle("GET /api/today.png", s.instrument("today_card", s.handleTodayCard))
	mux.Handle("GET /api/geocode", s.instrument("geocode", s.handleGeocode))
	mux.Handle("GET /api/reverse-geocode", s.instrument("reverse_geocode", s.handleReverseGeocode))
	mux.Handle("GET /api/airquality", s.instrument("airquality", s.handleAirQuality))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("server: listening on %s", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

type HealthStatus struct {
	Status        string       `json:"status"`
	Location      string       `json:"location"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Cache         *CacheHealth `json:"cache,omitempty"`
	Errors        []string     `json:"errors,omitempty"`
}

type CacheHealth struct {
	Entries         int            `json:"entries"`
	SizeBytes       int64          `json:"size_bytes"`
	CompressedBytes int64          `json:"compressed_bytes"`
	Hits            int64          `json:"hits"`
	ByEndpoint      map[string]int `json:"by_endpoint"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:        "ok",
		Location:      s.location.Name,
		UptimeSeconds: int64(s.clock.Since(s.started).Seconds()),
	}

	if s.cacheStats != nil {
		stats, err := s.cacheStats.Stats(r.Context())
		if err != nil {
			health.Status = "error"
			health.Errors = append(health.Errors, "cache: "+err.Error())
		} else {
			health.Cache = &CacheHealth{
				Entries:         stats.TotalCount,
				SizeBytes:       stats.TotalSizeBytes,
				CompressedBytes: stats.TotalCompressedSize,
				Hits:            stats.TotalHits,
				ByEndpoint:      stats.CountByEndpoint,
			}
		}
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
