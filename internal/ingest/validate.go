package ingest

import (
	"database/sql"
	"math"

	"github.com/lox/wastodayweird/internal/models"
)

const (
	FlagTempOutOfRange    = "temp_out_of_range"
	FlagHumidityInvalid   = "humidity_invalid"
	FlagWindSpeedUnlikely = "wind_speed_unlikely"
	FlagNonFinite         = "non_finite"
)

// ValidateDaily flags physically implausible daily values and clears them so
// they never enter a climatological sample.
func ValidateDaily(rec *models.DailyRecord) []string {
	var flags []string

	if !finite(rec.TempMean) || !finite(rec.WindMax) || !finite(rec.HumidityMean) {
		flags = append(flags, FlagNonFinite)
	}
	rec.TempMean = keepFinite(rec.TempMean)
	rec.WindMax = keepFinite(rec.WindMax)
	rec.HumidityMean = keepFinite(rec.HumidityMean)

	if rec.TempMean.Valid {
		if rec.TempMean.Float64 < -90 || rec.TempMean.Float64 > 60 {
			flags = append(flags, FlagTempOutOfRange)
			rec.TempMean = sql.NullFloat64{}
		}
	}

	if rec.HumidityMean.Valid {
		if rec.HumidityMean.Float64 < 0 || rec.HumidityMean.Float64 > 100 {
			flags = append(flags, FlagHumidityInvalid)
			rec.HumidityMean = sql.NullFloat64{}
		}
	}

	if rec.WindMax.Valid {
		if rec.WindMax.Float64 < 0 || rec.WindMax.Float64 > 120 {
			flags = append(flags, FlagWindSpeedUnlikely)
			rec.WindMax = sql.NullFloat64{}
		}
	}

	return flags
}

func finite(v sql.NullFloat64) bool {
	return !v.Valid || (!math.IsNaN(v.Float64) && !math.IsInf(v.Float64, 0))
}

func keepFinite(v sql.NullFloat64) sql.NullFloat64 {
	if !finite(v) {
		return sql.NullFloat64{}
	}
	return v
}
