package analytics

import (
	"errors"
	"math"
	"testing"

	"Pasture/internal/domain/models"
	"Pasture/pkg/timeseries"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorWeightProperties(t *testing.T) {
	kinds := []models.ModelKind{models.ModelHRP, models.ModelAHRP, models.ModelSAHRP}
	for _, kind := range kinds {
		for n := 2; n <= 7; n++ {
			prices := syntheticPanel(t, 120, n, int64(n))
			alloc, err := NewAllocator(kind)
			require.NoError(t, err)

			res, err := alloc.Allocate(prices.PctChange(1))
			require.NoError(t, err, "%s n=%d", kind, n)
			require.Len(t, res.Weights, n)
			for _, w := range res.Weights {
				assert.Greater(t, w.Weight, 0.0, "%s n=%d %s", kind, n, w.Symbol)
			}
			assert.InDelta(t, 1.0, res.Weights.Sum(), 1e-3)
			assert.NoError(t, res.Weights.Validate())
			assert.Len(t, res.Order, n)
			assert.Equal(t, n, res.Distance.Size())

			rounded := RoundWeights(res.Weights, 3)
			assert.InDelta(t, 1.0, rounded.Sum(), 1e-9)
		}
	}
}

func TestAllocatorSingleAsset(t *testing.T) {
	alloc, err := NewAllocator(models.ModelHRP)
	require.NoError(t, err)
	res, err := alloc.Allocate(syntheticPanel(t, 30, 1, 1).PctChange(1))
	require.NoError(t, err)
	assert.Equal(t, models.Weights{{Symbol: "S00", Weight: 1}}, res.Weights)
}

func TestAllocatorRejectsMissingCorrelation(t *testing.T) {
	alloc, err := NewAllocator(models.ModelHRP)
	require.NoError(t, err)
	// 10 rows cannot satisfy the 20 observation minimum
	_, err = alloc.Allocate(syntheticPanel(t, 10, 3, 1).PctChange(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrEmptySeries))
}

func TestUnknownModel(t *testing.T) {
	_, err := NewAllocator(models.ModelKind("MVO"))
	assert.Error(t, err)
}

func TestBisectInverseVariance(t *testing.T) {
	cov := NewMatrix([]string{"A", "B"})
	cov.Values = [][]float64{{1, 0}, {0, 4}}
	w := Bisect(cov, []int{0, 1}, nil, InverseVariance{})
	assert.InDelta(t, 0.8, w[0], 1e-9)
	assert.InDelta(t, 0.2, w[1], 1e-9)
}

func TestAttentionAtUnitTemperatureIsInverseVariance(t *testing.T) {
	sub := SubCovariance{Cov: [][]float64{{0.04, 0.01}, {0.01, 0.09}}}
	ivp := InverseVariance{}.ClusterVariance(sub)
	att := Attention{Temperature: 1}.ClusterVariance(sub)
	assert.InDelta(t, ivp, att, 1e-12)

	// with uncorrelated members inverse variance is the minimum, so sharpening costs variance
	diag := SubCovariance{Cov: [][]float64{{0.04, 0}, {0, 0.09}}}
	sharper := Attention{Temperature: 0.25}.ClusterVariance(diag)
	assert.Greater(t, sharper, InverseVariance{}.ClusterVariance(diag))
}

func TestSharpeAttentionFavorsHigherSharpe(t *testing.T) {
	cov := [][]float64{{0.0001, 0}, {0, 0.0001}}
	plain := Attention{Temperature: 1}.ClusterVariance(SubCovariance{Cov: cov})
	tilted := SharpeAttention{Temperature: 1, PeriodsPerYear: 252}.ClusterVariance(SubCovariance{
		Cov:  cov,
		Mean: []float64{0.002, -0.002},
	})
	// equal variances: any tilt away from 50/50 raises the cluster variance
	assert.Greater(t, tilted, plain)
}

func TestRoundWeights(t *testing.T) {
	w := models.Weights{
		{Symbol: "C", Weight: 1.0 / 3},
		{Symbol: "A", Weight: 1.0 / 3},
		{Symbol: "B", Weight: 1.0 / 3},
	}
	got := RoundWeights(w, 3)
	assert.Equal(t, models.Weights{
		{Symbol: "A", Weight: 0.333},
		{Symbol: "B", Weight: 0.333},
		{Symbol: "C", Weight: 0.334},
	}, got)
}

func TestPercentWeights(t *testing.T) {
	got := PercentWeights(models.Weights{{Symbol: "A", Weight: 0.123456}}, 3)
	assert.Equal(t, 12.346, got[0].Weight)
}

func TestDriftThreshold(t *testing.T) {
	assert.InDelta(t, 1/(math.Log(4)*2), DriftThreshold(4), 1e-12)
	assert.True(t, math.IsInf(DriftThreshold(1), 1))
	assert.InDelta(t, 0.2, Drift(map[string]float64{"A": 0.6, "B": 0.4}, map[string]float64{"A": 0.4, "B": 0.6}), 1e-12)
	assert.InDelta(t, 1.0, Drift(map[string]float64{"A": 1}, map[string]float64{"B": 1}), 1e-12)
}

func TestSimulatorRun(t *testing.T) {
	prices := syntheticPanel(t, 320, 4, 7)
	alloc, err := NewAllocator(models.ModelHRP)
	require.NoError(t, err)

	res, err := NewSimulator(alloc, RebalanceConfig{LookbackDays: 180, MinDays: 20}).Run(prices)
	require.NoError(t, err)
	require.NotEmpty(t, res.History)
	assert.Equal(t, prices.DateAt(180), res.History[0].Date)
	assert.Len(t, res.Returns, 320-181)
	assert.Len(t, res.Dates, len(res.Returns))
	for i := 1; i < len(res.History); i++ {
		gap := res.History[i].Date.Sub(res.History[i-1].Date)
		assert.GreaterOrEqual(t, gap, 20)
		assert.Greater(t, res.History[i].Drift, DriftThreshold(4))
	}
	latest := res.Latest()
	assert.InDelta(t, 1.0, latest.Weights.Sum(), 1e-3)
	assert.False(t, math.IsNaN(res.CumulativeReturn))
	assert.Greater(t, res.Volatility, 0.0)
}

func TestSimulatorNeverRebalancesWithinMinDays(t *testing.T) {
	prices := syntheticPanel(t, 260, 3, 3)
	alloc, err := NewAllocator(models.ModelSAHRP)
	require.NoError(t, err)
	res, err := NewSimulator(alloc, RebalanceConfig{LookbackDays: 180, MinDays: 1000}).Run(prices)
	require.NoError(t, err)
	assert.Len(t, res.History, 1)
}

func TestSimulatorShortPanel(t *testing.T) {
	prices := syntheticPanel(t, 60, 3, 5)
	alloc, err := NewAllocator(models.ModelAHRP)
	require.NoError(t, err)
	res, err := NewSimulator(alloc, DefaultRebalanceConfig()).Run(prices)
	require.NoError(t, err)
	require.Len(t, res.History, 1)
	last, _ := prices.LastDate()
	assert.Equal(t, last, res.History[0].Date)
	assert.Empty(t, res.Returns)
	assert.Equal(t, 0.0, res.CumulativeReturn)
}

func TestSimulatorEmpty(t *testing.T) {
	alloc, err := NewAllocator(models.ModelHRP)
	require.NoError(t, err)
	_, err = NewSimulator(alloc, DefaultRebalanceConfig()).Run(timeseries.New(nil, nil))
	assert.True(t, errors.Is(err, models.ErrEmptySeries))
}
