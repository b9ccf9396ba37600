package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lox/wastodayweird/internal/models"
)

const (
	minQueryLength = 2
	geocodeTTL     = 24 * time.Hour
)

// GeocodeClient resolves place names and coordinates via the Open-Meteo
// geocoding API.
type GeocodeClient struct {
	baseURL  string
	upstream *upstream
}

func NewGeocodeClient(baseURL string, opts Options) *GeocodeClient {
	if baseURL == "" {
		baseURL = DefaultGeocodeURL
	}
	return &GeocodeClient{baseURL: strings.TrimSuffix(baseURL, "/"), upstream: newUpstream(opts)}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

// Search returns up to five places matching query. Queries shorter than two
// characters return no results without contacting the upstream.
func (c *GeocodeClient) Search(ctx context.Context, query string) ([]models.Place, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minQueryLength {
		return nil, nil
	}

	params := url.Values{}
	params.Set("name", query)
	params.Set("count", "5")
	params.Set("language", "en")
	params.Set("format", "json")

	data, err := get(ctx, c.upstream, "geocode", c.baseURL+"/search?"+params.Encode(), geocodeTTL, decodeJSON[geocodeResponse]("geocode"))
	if err != nil {
		return nil, fmt.Errorf("geocode search: %w", err)
	}

	places := make([]models.Place, 0, len(data.Results))
	for _, r := range data.Results {
		places = append(places, models.Place{
			Name:      joinName(r.Name, r.Admin1, r.Country),
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	return places, nil
}

// Reverse returns the display name of the place nearest to lat/lon, or an
// empty string when the upstream knows none.
func (c *GeocodeClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("language", "en")
	params.Set("format", "json")

	data, err := get(ctx, c.upstream, "reverse_geocode", c.baseURL+"/reverse?"+params.Encode(), geocodeTTL, decodeJSON[geocodeResponse]("reverse geocode"))
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(data.Results) == 0 {
		return "", nil
	}
	r := data.Results[0]
	return joinName(r.Name, r.Admin1, r.Country), nil
}

func joinName(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
