package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogReturns(t *testing.T) {
	r := LogReturns([]float64{100, 110, 0, 121})
	assert.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
	assert.Nil(t, LogReturns([]float64{1}))
}

func TestCompoundLog(t *testing.T) {
	assert.InDelta(t, 0.21, CompoundLog([]float64{0.1, 0.1}), 1e-12)
	assert.InDelta(t, 0.0, CompoundLog(nil), 1e-12)
}

func TestMean(t *testing.T) {
	assert.InDelta(t, 2.0, Mean([]float64{1, math.NaN(), 3}), 1e-12)
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Mean([]float64{math.NaN()}))
}

func TestStdDev(t *testing.T) {
	assert.InDelta(t, math.Sqrt(2.5), StdDev([]float64{1, 2, 3, 4, 5}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{1}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, math.NaN(), 2, 3}), 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.5, MaxDrawdown([]float64{100, 120, 60, 90, 130}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 2, 3}))
}

func TestBeta(t *testing.T) {
	b := []float64{0.01, -0.02, 0.03, 0.0}
	a := []float64{0.02, -0.04, 0.06, 0.0}
	assert.InDelta(t, 2.0, Beta(a, b), 1e-12)
	assert.True(t, math.IsNaN(Beta([]float64{1}, []float64{1})))
}
