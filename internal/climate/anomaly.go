package climate

import (
	"database/sql"
	"math"
)

// Anomaly compares one observed value against its normal.
type Anomaly struct {
	Actual     float64
	Normal     float64
	Delta      float64
	Percentile float64
	ZScore     sql.NullFloat64
}

// ComputeAnomaly derives delta, percentile and z-score for actual against a
// normal summary and the sample it was computed from. Missing inputs yield
// NaN fields and an invalid z-score rather than an error.
func ComputeAnomaly(actual float64, normal Summary, sample []float64) Anomaly {
	a := Anomaly{
		Actual:     actual,
		Normal:     normal.Mean,
		Delta:      math.NaN(),
		Percentile: math.NaN(),
	}

	if isFinite(actual) && isFinite(normal.Mean) {
		a.Delta = actual - normal.Mean
	}
	if isFinite(actual) && len(sample) > 0 {
		a.Percentile = PercentileOf(actual, sample)
	}
	if normal.StdDev.Valid && isFinite(a.Delta) {
		sd := normal.StdDev.Float64
		if sd == 0 {
			sd = 1
		}
		a.ZScore = sql.NullFloat64{Float64: a.Delta / sd, Valid: true}
	}

	return a
}
