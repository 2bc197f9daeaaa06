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

func twoAssetPanel(t *testing.T) *timeseries.Table {
	t.Helper()
	index := timeseries.DateRange(timeseries.NewDate(2024, 3, 1), timeseries.NewDate(2024, 3, 4))
	tbl, err := timeseries.FromColumns(index, map[string][]float64{
		"AAA": {100, 110, 121, 110},
		"BBB": {100, 90, 81, 90},
		"SPY": {200, 210, math.NaN(), 220},
	})
	require.NoError(t, err)
	return tbl
}

func TestProfilerProfile(t *testing.T) {
	p := NewProfiler(DefaultProfileConfig())
	got := p.Profile(twoAssetPanel(t), models.Period1M)
	require.Len(t, got, 3)

	aaa := got[0]
	assert.Equal(t, "AAA", aaa.Symbol)
	assert.Equal(t, models.Period1M, aaa.Period)
	assert.Equal(t, timeseries.NewDate(2024, 3, 4), aaa.BaseDate)
	assert.Equal(t, 0.1, aaa.TotalReturn)
	assert.InDelta(t, 110.0/121-1, aaa.MaxDrawdown, 1e-3)
	assert.Greater(t, aaa.Volatility, aaa.MonthlyVolatility)

	bbb := got[1]
	assert.Equal(t, -0.1, bbb.TotalReturn)
	assert.Equal(t, -0.19, bbb.MaxDrawdown)

	// missing middle price is skipped, not treated as zero
	spy := got[2]
	assert.Equal(t, 0.1, spy.TotalReturn)
	assert.Equal(t, 0.0, spy.MaxDrawdown)
}

func TestProfilerSkipsShortColumns(t *testing.T) {
	index := []timeseries.Date{timeseries.NewDate(2024, 1, 2), timeseries.NewDate(2024, 1, 3)}
	tbl, err := timeseries.FromColumns(index, map[string][]float64{"X": {math.NaN(), 5}})
	require.NoError(t, err)
	assert.Empty(t, NewProfiler(ProfileConfig{}).Profile(tbl, models.Period1Y))
}

func TestPortfolioReturns(t *testing.T) {
	w := models.Weights{{Symbol: "AAA", Weight: 0.5}, {Symbol: "BBB", Weight: 0.5}}
	pts, err := PortfolioReturns(twoAssetPanel(t), w)
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, timeseries.NewDate(2024, 3, 2), pts[0].X)
	assert.InDelta(t, 0.0, pts[0].Y, 1e-12)
	assert.InDelta(t, 0.0, pts[1].Y, 1e-12)
}

func TestPortfolioReturnsErrors(t *testing.T) {
	_, err := PortfolioReturns(twoAssetPanel(t), models.Weights{{Symbol: "AAA", Weight: 0.7}})
	assert.True(t, errors.Is(err, models.ErrInvalidWeights))

	_, err = PortfolioReturns(twoAssetPanel(t), models.Weights{{Symbol: "ZZZ", Weight: 1}})
	assert.True(t, errors.Is(err, models.ErrEmptySeries))
}

func TestPerformance(t *testing.T) {
	w := models.Weights{{Symbol: "AAA", Weight: 1}}
	got, err := Performance(twoAssetPanel(t), w, []string{"SPY", "AAA"}, DefaultProfileConfig())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, PortfolioName, got[0].Name)
	assert.Equal(t, "SPY", got[1].Name)
	assert.Equal(t, 1.0, got[1].Beta)
	// SPY is missing on 03-03, so the panel keeps 03-01, 03-02 and 03-04
	assert.Equal(t, 0.1, got[0].TotalReturn)
	assert.Equal(t, got[0].TotalReturn, got[2].TotalReturn)
}
