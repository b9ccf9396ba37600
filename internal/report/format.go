package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/lox/wastodayweird/internal/climate"
)

// Placeholder is shown in place of an unavailable number.
const Placeholder = "–"

// FormatValue renders v to one decimal place, or Placeholder when v is not
// finite.
func FormatValue(v float64) string {
	if !finite(v) {
		return Placeholder
	}
	return fmt.Sprintf("%.1f", v)
}

// FormatDelta renders a signed difference with its unit, e.g. "+1.2 °C".
func FormatDelta(v float64, unit string) string {
	if !finite(v) {
		return Placeholder
	}
	sign := ""
	if v >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f %s", sign, v, unit)
}

// FormatAnomaly renders an anomaly as a single line:
// "31.2 °C vs 29.0 normal, +2.2 °C • p95 • z=1.3".
func FormatAnomaly(a climate.Anomaly, unit string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s vs %s normal, %s", FormatValue(a.Actual), unit, FormatValue(a.Normal), FormatDelta(a.Delta, unit))
	if finite(a.Percentile) {
		fmt.Fprintf(&b, " • p%.0f", a.Percentile)
	}
	if a.ZScore.Valid && finite(a.ZScore.Float64) {
		fmt.Fprintf(&b, " • z=%.1f", a.ZScore.Float64)
	}
	return b.String()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
