// Package card renders a shareable Open Graph image summarising how a day
// compares with its climate normal.
package card

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"time"

	"github.com/lox/wastodayweird/internal/climate"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Width and Height are the standard Open Graph image dimensions.
const (
	Width  = 1200
	Height = 630
)

var (
	fontLarge   font.Face
	fontRegular font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		fontLarge, fontErr = newFace(gomedium.TTF, 140)
		if fontErr != nil {
			fontErr = fmt.Errorf("load medium face: %w", fontErr)
			return
		}
		fontRegular, fontErr = newFace(goregular.TTF, 36)
		if fontErr != nil {
			fontErr = fmt.Errorf("load regular face: %w", fontErr)
		}
	})
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Data is what the card shows.
type Data struct {
	Place       string
	Date        time.Time
	Temperature float64 // NaN when unknown
	Summary     string  // e.g. "+3.1 °C vs normal • p92"
	Condition   string
	Tint        float64 // -1 (much colder) .. +1 (much warmer)
}

// TintFor maps a temperature anomaly onto -1..1. The z-score is used when
// available, otherwise the delta in degrees scaled so that 5 °C saturates.
func TintFor(a climate.Anomaly) float64 {
	var t float64
	switch {
	case a.ZScore.Valid && !math.IsNaN(a.ZScore.Float64):
		t = a.ZScore.Float64 / 2.5
	case !math.IsNaN(a.Delta) && !math.IsInf(a.Delta, 0):
		t = a.Delta / 5
	default:
		return 0
	}
	return math.Max(-1, math.Min(1, t))
}

var (
	neutral = color.RGBA{28, 32, 46, 255}
	warm    = color.RGBA{168, 48, 32, 255}
	cool    = color.RGBA{32, 72, 168, 255}
)

// background returns the top colour for a tint; the card fades to neutral
// towards the bottom.
func background(tint float64) color.RGBA {
	target := warm
	if tint < 0 {
		target = cool
		tint = -tint
	}
	return blend(neutral, target, tint)
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

// Render draws the card and encodes it as PNG.
func Render(data Data) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	top := background(data.Tint)
	for y := 0; y < Height; y++ {
		// Ease-in towards neutral so the text at the bottom stays readable.
		progress := float64(y) / float64(Height)
		row := blend(top, neutral, progress*progress*0.7)
		for x := 0; x < Width; x++ {
			img.SetRGBA(x, y, row)
		}
	}

	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{205, 205, 210, 255}

	temp := "–"
	if !math.IsNaN(data.Temperature) && !math.IsInf(data.Temperature, 0) {
		temp = fmt.Sprintf("%.0f°", data.Temperature)
	}
	drawText(img, temp, 60, 230, white, fontLarge)

	if data.Summary != "" {
		drawText(img, data.Summary, 60, 320, white, fontRegular)
	}
	if data.Condition != "" {
		drawText(img, data.Condition, 60, 380, lightGray, fontRegular)
	}

	footer := data.Place
	if !data.Date.IsZero() {
		if footer != "" {
			footer += " • "
		}
		footer += data.Date.Format("Mon 2 Jan 2006")
	}
	if footer != "" {
		drawText(img, footer, 60, Height-90, lightGray, fontRegular)
	}
	drawText(img, "was today weird?", 60, Height-40, lightGray, fontRegular)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
