package forecast

import "math"

// AQILabel returns the US AQI category for aqi, or "" when aqi is not a
// finite number.
func AQILabel(aqi float64) string {
	switch {
	case math.IsNaN(aqi) || math.IsInf(aqi, 0):
		return ""
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}
