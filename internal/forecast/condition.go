package forecast

// CodeInfo is the display label and icon for a WMO weather interpretation
// code.
type CodeInfo struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

var unknownCode = CodeInfo{Label: "Unknown", Icon: "❓"}

var weatherCodes = map[int]CodeInfo{
	0:  {"Clear sky", "☀️"},
	1:  {"Mainly clear", "🌤️"},
	2:  {"Partly cloudy", "⛅"},
	3:  {"Overcast", "☁️"},
	45: {"Fog", "🌫️"},
	48: {"Depositing rime fog", "🌫️"},
	51: {"Light drizzle", "🌦️"},
	53: {"Moderate drizzle", "🌦️"},
	55: {"Dense drizzle", "🌦️"},
	61: {"Slight rain", "🌧️"},
	63: {"Moderate rain", "🌧️"},
	65: {"Heavy rain", "🌧️"},
	71: {"Slight snow", "🌨️"},
	73: {"Moderate snow", "🌨️"},
	75: {"Heavy snow", "🌨️"},
	77: {"Snow grains", "🌨️"},
	80: {"Rain showers", "🌦️"},
	81: {"Rain showers", "🌧️"},
	82: {"Violent rain showers", "🌧️"},
	85: {"Snow showers", "🌨️"},
	86: {"Heavy snow showers", "🌨️"},
	95: {"Thunderstorm", "⛈️"},
	96: {"Thunderstorm with hail", "⛈️"},
	99: {"Thunderstorm with heavy hail", "⛈️"},
}

// DescribeCode returns the label and icon for a WMO code, or "Unknown" for
// codes outside the table.
func DescribeCode(code int) CodeInfo {
	if info, ok := weatherCodes[code]; ok {
		return info
	}
	return unknownCode
}

// WeatherCondition is a coarse weather category for a forecast day.
type WeatherCondition string

const (
	ConditionClearWarm    WeatherCondition = "clear_warm"
	ConditionClearCool    WeatherCondition = "clear_cool"
	ConditionPartlyCloudy WeatherCondition = "partly_cloudy"
	ConditionMostlyCloudy WeatherCondition = "mostly_cloudy"
	ConditionLightRain    WeatherCondition = "light_rain"
	ConditionHeavyRain    WeatherCondition = "heavy_rain"
	ConditionSnow         WeatherCondition = "snow"
	ConditionStorm        WeatherCondition = "storm"
	ConditionFog          WeatherCondition = "fog"
	ConditionHot          WeatherCondition = "hot"
	ConditionFrost        WeatherCondition = "frost"
)

// Condition categorizes a day from its WMO code and temperature range.
// Temperature extremes win over dry codes but not over precipitation.
func Condition(code int, tempMax, tempMin float64) WeatherCondition {
	switch {
	case code >= 95:
		return ConditionStorm
	case code == 65 || code == 82:
		return ConditionHeavyRain
	case code >= 71 && code <= 77, code == 85, code == 86:
		return ConditionSnow
	case code >= 51 && code <= 63, code == 80, code == 81:
		return ConditionLightRain
	}

	if tempMax >= 35 {
		return ConditionHot
	}
	if tempMin <= 0 {
		return ConditionFrost
	}

	switch code {
	case 45, 48:
		return ConditionFog
	case 3:
		return ConditionMostlyCloudy
	case 2:
		return ConditionPartlyCloudy
	}
	if tempMax >= 25 {
		return ConditionClearWarm
	}
	return ConditionClearCool
}
