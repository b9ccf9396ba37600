package card

import (
	"bytes"
	"database/sql"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/lox/wastodayweird/internal/climate"
)

func TestTintFor(t *testing.T) {
	tests := []struct {
		name string
		a    climate.Anomaly
		want float64
	}{
		{"z-score", climate.Anomaly{Delta: 1, ZScore: sql.NullFloat64{Float64: 1.25, Valid: true}}, 0.5},
		{"z-score saturates", climate.Anomaly{ZScore: sql.NullFloat64{Float64: -9, Valid: true}}, -1},
		{"delta fallback", climate.Anomaly{Delta: 2.5}, 0.5},
		{"delta saturates", climate.Anomaly{Delta: 12}, 1},
		{"nothing known", climate.Anomaly{Delta: math.NaN()}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TintFor(tt.a); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TintFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		tint     float64
		warmTone bool
	}{
		{"warm", 1, true},
		{"cool", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Render(Data{
				Place:       "Vadodara",
				Date:        time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
				Temperature: 41.2,
				Summary:     "+3.1 °C vs normal • p92",
				Condition:   "Clear sky",
				Tint:        tt.tint,
			})
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}

			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
				t.Fatalf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), Width, Height)
			}

			r, _, b, _ := img.At(Width-5, 5).RGBA()
			if tt.warmTone && r <= b {
				t.Errorf("top-right pixel r=%d b=%d, want red dominant", r, b)
			}
			if !tt.warmTone && b <= r {
				t.Errorf("top-right pixel r=%d b=%d, want blue dominant", r, b)
			}
		})
	}
}

func TestRenderUnknownTemperature(t *testing.T) {
	data, err := Render(Data{Temperature: math.NaN()})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Render() returned no bytes")
	}
}
