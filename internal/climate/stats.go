package climate

import (
	"database/sql"
	"math"
	"slices"

	"github.com/montanaflynn/stats"
)

// Summary describes a sample of one variable. Mean is NaN for an empty
// sample and StdDev is invalid when fewer than two values were seen.
type Summary struct {
	Mean   float64
	StdDev sql.NullFloat64
	N      int
}

// Available reports whether the summary has a usable mean.
func (s Summary) Available() bool {
	return s.N > 0 && !math.IsNaN(s.Mean)
}

func Summarize(values []float64) Summary {
	s := Summary{Mean: Mean(values), N: len(values)}
	if sd, ok := StdDev(values); ok {
		s.StdDev = sql.NullFloat64{Float64: sd, Valid: true}
	}
	return s
}

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return math.NaN()
	}
	return m
}

// StdDev returns the population standard deviation (denominator n).
// ok is false when there are fewer than two values.
func StdDev(values []float64) (sd float64, ok bool) {
	if len(values) < 2 {
		return 0, false
	}
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0, false
	}
	return sd, true
}

// PercentileOf returns the position of x within sample on a 0..100 scale,
// interpolating linearly between ranks. Non-finite sample values are ignored.
// The result is NaN when x is NaN or no finite values remain.
func PercentileOf(x float64, sample []float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}

	vals := make([]float64, 0, len(sample))
	for _, v := range sample {
		if isFinite(v) {
			vals = append(vals, v)
		}
	}
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}
	slices.Sort(vals)

	if x <= vals[0] {
		return 0
	}
	if x >= vals[n-1] {
		return 100
	}

	// vals[lo] <= x < vals[hi]
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if vals[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}

	gap := vals[hi] - vals[lo]
	if gap == 0 {
		gap = 1
	}
	rank := float64(lo) + (x-vals[lo])/gap
	return 100 * rank / float64(n-1)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
