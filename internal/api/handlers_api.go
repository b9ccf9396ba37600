package api

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lox/wastodayweird/internal/card"
	"github.com/lox/wastodayweird/internal/climate"
	"github.com/lox/wastodayweird/internal/ingest"
	"github.com/lox/wastodayweird/internal/models"
	"github.com/lox/wastodayweird/internal/report"
)

const (
	normalsMaxAge    = 30 * 24 * time.Hour
	forecastMaxAge   = 15 * time.Minute
	geocodeMaxAge    = 24 * time.Hour
	airQualityMaxAge = 30 * time.Minute
)

func cacheFor(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(d.Seconds())))
}

// parseFinite parses a required finite float query parameter.
func parseFinite(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	return v, nil
}

func parseCoords(r *http.Request) (lat, lon float64, err error) {
	if lat, err = parseFinite(r, "lat"); err != nil {
		return 0, 0, err
	}
	if lon, err = parseFinite(r, "lon"); err != nil {
		return 0, 0, err
	}
	if lat < -90 || lat > 90 {
		return 0, 0, errors.New("lat must be within -90..90")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, errors.New("lon must be within -180..180")
	}
	return lat, lon, nil
}

// parseDate parses an optional YYYY-MM-DD date parameter. A missing date
// yields the zero time.
func parseDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return d, nil
}

func (s *Server) handleNormals(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := parseFinite(r, "doy")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doy, ok := climate.FromRaw(int(raw))
	if !ok || raw != math.Trunc(raw) {
		writeError(w, http.StatusBadRequest, "doy must be an integer within 1..366")
		return
	}

	normals, err := s.reports.Normals(r.Context(), lat, lon, doy)
	if err != nil {
		log.Printf("api: normals for %v,%v: %v", lat, lon, err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
		return
	}

	cacheFor(w, normalsMaxAge)
	writeJSON(w, http.StatusOK, newNormalsResponse(normals))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fc, err := s.forecast.FetchForecast(r.Context(), lat, lon)
	if err != nil {
		log.Printf("api: forecast for %v,%v: %v", lat, lon, err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
		return
	}

	var day models.ForecastDay
	switch {
	case !date.IsZero():
		var ok bool
		if day, ok = fc.Day(date); !ok {
			writeError(w, http.StatusNotFound, report.ErrDateNotInForecast.Error())
			return
		}
	case len(fc.Days) > 0:
		day = fc.Days[0]
	default:
		writeError(w, http.StatusNotFound, report.ErrDateNotInForecast.Error())
		return
	}

	cacheFor(w, forecastMaxAge)
	writeJSON(w, http.StatusOK, newForecastResponse(fc, day))
}

// buildReport resolves the location and date of a today request and builds
// its report. It writes the error response itself and returns nil on failure.
func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) *report.Report {
	loc := s.location
	q := r.URL.Query()
	if q.Has("lat") || q.Has("lon") {
		lat, lon, err := parseCoords(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil
		}
		loc = models.Location{Name: q.Get("name"), Latitude: lat, Longitude: lon}
	}
	date, err := parseDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil
	}

	rep, err := s.reports.Build(r.Context(), loc, date)
	if errors.Is(err, report.ErrDateNotInForecast) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil
	}
	if err != nil {
		log.Printf("api: today for %v,%v: %v", loc.Latitude, loc.Longitude, err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
		return nil
	}
	return rep
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	rep := s.buildReport(w, r)
	if rep == nil {
		return
	}
	cacheFor(w, forecastMaxAge)
	writeJSON(w, http.StatusOK, newTodayResponse(rep))
}

func (s *Server) handleTodayCard(w http.ResponseWriter, r *http.Request) {
	rep := s.buildReport(w, r)
	if rep == nil {
		return
	}

	data := card.Data{
		Place:       rep.Location.Name,
		Date:        rep.Date,
		Temperature: rep.Temperature.Actual,
		Summary:     report.FormatDelta(rep.Temperature.Delta, "°C") + " vs normal",
		Tint:        card.TintFor(rep.Temperature),
	}
	if p := rep.Temperature.Percentile; !math.IsNaN(p) {
		data.Summary += fmt.Sprintf(" • p%.0f", p)
	}
	if v := weatherView(rep.Day); v.Code != nil {
		data.Condition = v.Label
	}

	img, err := card.Render(data)
	if err != nil {
		log.Printf("api: render card: %v", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}

	cacheFor(w, forecastMaxAge)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Write(img)
}

type GeocodeResponse struct {
	Results []models.Place `json:"results"`
}

// handleGeocode answers with an empty result list when the upstream fails,
// so a search box never shows an error.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	resp := GeocodeResponse{Results: []models.Place{}}

	places, err := s.geocoder.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		log.Printf("api: geocode: %v", err)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if len(places) > 0 {
		resp.Results = places
	}

	cacheFor(w, geocodeMaxAge)
	writeJSON(w, http.StatusOK, resp)
}

type ReverseGeocodeResponse struct {
	Name *string `json:"name"`
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoords(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ReverseGeocodeResponse{})
		return
	}

	name, err := s.geocoder.Reverse(r.Context(), lat, lon)
	if err != nil {
		log.Printf("api: reverse geocode: %v", err)
		writeJSON(w, http.StatusOK, ReverseGeocodeResponse{})
		return
	}

	resp := ReverseGeocodeResponse{}
	if name != "" {
		resp.Name = &name
	}
	cacheFor(w, geocodeMaxAge)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAirQuality(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	aq, err := s.airQuality.FetchCurrent(r.Context(), lat, lon)
	if err != nil {
		log.Printf("api: air quality for %v,%v: %v", lat, lon, err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
		return
	}

	cacheFor(w, airQualityMaxAge)
	writeJSON(w, http.StatusOK, newAirQualityResponse(aq))
}

func upstreamMessage(err error) string {
	if errors.Is(err, ingest.ErrNoDailyData) {
		return "no daily data"
	}
	return "upstream error"
}
