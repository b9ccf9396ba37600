package climate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAnomaly(t *testing.T) {
	normal := Summary{Mean: 20, StdDev: valid(2), N: 5}
	sample := []float64{16, 18, 20, 22, 24}

	a := ComputeAnomaly(25, normal, sample)

	assert.Equal(t, 25.0, a.Actual)
	assert.Equal(t, 20.0, a.Normal)
	assert.Equal(t, 5.0, a.Delta)
	assert.Equal(t, 100.0, a.Percentile)
	require.True(t, a.ZScore.Valid)
	assert.Equal(t, 2.5, a.ZScore.Float64)
}

func TestComputeAnomaly_Negative(t *testing.T) {
	normal := Summary{Mean: 20, StdDev: valid(4), N: 5}

	a := ComputeAnomaly(17, normal, []float64{16, 18, 20, 22, 24})

	assert.Equal(t, -3.0, a.Delta)
	assert.InDelta(t, 12.5, a.Percentile, 1e-9)
	assert.Equal(t, -0.75, a.ZScore.Float64)
}

func TestComputeAnomaly_ZeroSpread(t *testing.T) {
	normal := Summary{Mean: 10, StdDev: valid(0), N: 4}

	a := ComputeAnomaly(13, normal, []float64{10, 10, 10, 10})

	require.True(t, a.ZScore.Valid)
	assert.Equal(t, a.Delta, a.ZScore.Float64)
	assert.Equal(t, 100.0, a.Percentile)
}

func TestComputeAnomaly_SingleSample(t *testing.T) {
	normal := Summarize([]float64{10})

	a := ComputeAnomaly(12, normal, []float64{10})

	assert.Equal(t, 2.0, a.Delta)
	assert.False(t, a.ZScore.Valid, "no spread means no z-score")
}

func TestComputeAnomaly_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		actual float64
		normal Summary
		sample []float64
	}{
		{"no historical coverage", 12, Summarize(nil), nil},
		{"missing actual", math.NaN(), Summary{Mean: 20, StdDev: valid(2), N: 3}, []float64{18, 20, 22}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ComputeAnomaly(tt.actual, tt.normal, tt.sample)
			assert.True(t, math.IsNaN(a.Delta))
			assert.True(t, math.IsNaN(a.Percentile))
			assert.False(t, a.ZScore.Valid)
		})
	}
}
